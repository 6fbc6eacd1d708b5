package quality

import (
	"errors"
	"math"
	"testing"
	"time"
)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestPostScenario(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	published := now.Add(-30 * 24 * time.Hour)
	s := PostSignals{
		Views:     500,
		Likes:     50,
		Comments:  25,
		Bookmarks: 5,
		Tags:      2,
		Published: &published,
	}
	w := DefaultPostWeights()

	base := PostBase(s, w)
	if !approx(base, 3.53) {
		t.Fatalf("base = %v, want 3.53", base)
	}
	if got := Post(s, w, now); !approx(got, 1.765) {
		t.Errorf("decayed = %v, want 1.765", got)
	}
}

func TestDecayMonotonic(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	prev := math.Inf(1)
	for _, hours := range []int{0, 1, 12, 24, 24 * 7, 24 * 30, 24 * 365} {
		ref := now.Add(-time.Duration(hours) * time.Hour)
		got := Decay(2, &ref, 30, now)
		if got >= prev {
			t.Errorf("decay at %dh = %v, not below %v", hours, got, prev)
		}
		prev = got
	}
}

func TestDecayReturnsBaseForUndatedOrFuture(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)

	if got := Decay(3, nil, 30, now); got != 3 {
		t.Errorf("undated: got %v", got)
	}
	if got := Decay(3, &future, 30, now); got != 3 {
		t.Errorf("future: got %v", got)
	}
	var zero time.Time
	if got := Decay(3, &zero, 30, now); got != 3 {
		t.Errorf("zero time: got %v", got)
	}
	past := now.Add(-time.Hour)
	if got := Decay(3, &past, 0, now); got != 3 {
		t.Errorf("zero half-life: got %v", got)
	}
}

func TestNormalizers(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"saturate below", Saturate(5, 10), 0.5},
		{"saturate caps", Saturate(50, 10), 1},
		{"saturate negative", Saturate(-3, 10), 0},
		{"votes balance", VoteBalance(5, 2), 0.3},
		{"votes floor", VoteBalance(0, 30), -1},
		{"ratings neutral", RatingsScore(4, 5), NeutralRating},
		{"ratings average", RatingsScore(5, 4), 0.8},
		{"ratings clamp", RatingsScore(9, 7), 1},
		{"no tags", TagsScore(0), 0},
		{"one tag", TagsScore(1), 0.84},
		{"many tags", TagsScore(12), 1},
		{"featured", FeaturedScore(true), 1},
		{"abuse", AbuseScore(10), -1},
	}
	for _, tt := range tests {
		if !approx(tt.got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestCommentAndReplyScores(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	created := now.Add(-60 * 24 * time.Hour)

	c := CommentSignals{Views: 250, Likes: 25, Replies: 5, YesVotes: 10, Created: &created}
	// 0.5 + 1 + 0.5 + 1, two half-lives
	if got := Comment(c, DefaultCommentWeights(), now); !approx(got, 3.0/4) {
		t.Errorf("comment = %v", got)
	}

	r := ReplySignals{Likes: 5, NoVotes: 5, AbuseReports: 1}
	// 0.5 - 0.5 - 0.2, undated
	if got := Reply(r, DefaultReplyWeights(), now); !approx(got, -0.2) {
		t.Errorf("reply = %v", got)
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}

	w := DefaultWeights()
	w.Comment.Likes = -1
	if err := w.Validate(); !errors.Is(err, ErrNegativeWeight) {
		t.Errorf("want ErrNegativeWeight, got %v", err)
	}

	w = DefaultWeights().WithHalfLife(-2)
	if err := w.Validate(); !errors.Is(err, ErrNegativeHalfLife) {
		t.Errorf("want ErrNegativeHalfLife, got %v", err)
	}
}

func TestZeroWeightsIgnoreSignals(t *testing.T) {
	s := PostSignals{Views: 1000, Likes: 50, Featured: true}
	if got := PostBase(s, PostWeights{}); got != 0 {
		t.Errorf("zero weights = %v", got)
	}
}

func BenchmarkPost(b *testing.B) {
	now := time.Now()
	published := now.Add(-72 * time.Hour)
	s := PostSignals{Views: 800, Likes: 12, Comments: 4, Tags: 3, Ratings: 7, RatingsAverage: 4.2, Published: &published}
	w := DefaultPostWeights()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Post(s, w, now)
	}
}
