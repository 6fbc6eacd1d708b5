// ABOUTME: Weighted composite quality scores with half-life decay
// ABOUTME: Pure functions over engagement signals, no store access

package quality

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNegativeWeight   = errors.New("quality: negative weight")
	ErrNegativeHalfLife = errors.New("quality: negative half-life")
)

// DefaultHalfLifeDays is the decay half-life of the default weights.
const DefaultHalfLifeDays = 30

// Decay halves base every halfLifeDays since ref. A nil or future ref, or
// a zero half-life, leaves base unchanged.
func Decay(base float64, ref *time.Time, halfLifeDays float64, now time.Time) float64 {
	if ref == nil || ref.IsZero() || halfLifeDays <= 0 {
		return base
	}
	hours := now.Sub(*ref).Hours()
	if hours < 0 {
		return base
	}
	return base * math.Pow(0.5, hours/(halfLifeDays*24))
}

func checkWeights(halfLife float64, named map[string]float64) error {
	for name, w := range named {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("%w: %s = %v", ErrNegativeWeight, name, w)
		}
	}
	if halfLife < 0 || math.IsNaN(halfLife) {
		return fmt.Errorf("%w: %v", ErrNegativeHalfLife, halfLife)
	}
	return nil
}

// PostSignals are the inputs of a post score.
type PostSignals struct {
	Views          int64
	Likes          int64
	Comments       int64
	Bookmarks      int64
	Shares         int64
	YesVotes       int64
	NoVotes        int64
	Ratings        int64
	RatingsAverage float64
	AbuseReports   int64
	Tags           int
	Featured       bool
	Published      *time.Time
}

// PostWeights weigh each post signal.
type PostWeights struct {
	Featured     float64
	Tags         float64
	Views        float64
	Bookmarks    float64
	Comments     float64
	Likes        float64
	Ratings      float64
	Shares       float64
	Votes        float64
	Abuse        float64
	HalfLifeDays float64
}

// DefaultPostWeights weighs every signal 1 with a 30 day half-life.
func DefaultPostWeights() PostWeights {
	return PostWeights{
		Featured: 1, Tags: 1, Views: 1, Bookmarks: 1, Comments: 1,
		Likes: 1, Ratings: 1, Shares: 1, Votes: 1, Abuse: 1,
		HalfLifeDays: DefaultHalfLifeDays,
	}
}

// Validate rejects negative weights and half-lives.
func (w PostWeights) Validate() error {
	return checkWeights(w.HalfLifeDays, map[string]float64{
		"featured": w.Featured, "tags": w.Tags, "views": w.Views,
		"bookmarks": w.Bookmarks, "comments": w.Comments, "likes": w.Likes,
		"ratings": w.Ratings, "shares": w.Shares, "votes": w.Votes, "abuse": w.Abuse,
	})
}

// PostBase is the undecayed weighted sum of post signals.
func PostBase(s PostSignals, w PostWeights) float64 {
	return w.Featured*FeaturedScore(s.Featured) +
		w.Tags*TagsScore(s.Tags) +
		w.Views*Saturate(s.Views, PostViewsAt) +
		w.Bookmarks*Saturate(s.Bookmarks, PostBookmarksAt) +
		w.Comments*Saturate(s.Comments, PostCommentsAt) +
		w.Likes*Saturate(s.Likes, PostLikesAt) +
		w.Ratings*RatingsScore(s.Ratings, s.RatingsAverage) +
		w.Shares*Saturate(s.Shares, PostSharesAt) +
		w.Votes*VoteBalance(s.YesVotes, s.NoVotes) +
		w.Abuse*AbuseScore(s.AbuseReports)
}

// Post is the decayed post score, aged from the publish date.
func Post(s PostSignals, w PostWeights, now time.Time) float64 {
	return Decay(PostBase(s, w), s.Published, w.HalfLifeDays, now)
}

// CommentSignals are the inputs of a comment score.
type CommentSignals struct {
	Views        int64
	Likes        int64
	Replies      int64
	YesVotes     int64
	NoVotes      int64
	AbuseReports int64
	Featured     bool
	Created      *time.Time
}

// CommentWeights weigh each comment signal.
type CommentWeights struct {
	Featured     float64
	Views        float64
	Likes        float64
	Replies      float64
	Votes        float64
	Abuse        float64
	HalfLifeDays float64
}

// DefaultCommentWeights weighs every signal 1 with a 30 day half-life.
func DefaultCommentWeights() CommentWeights {
	return CommentWeights{
		Featured: 1, Views: 1, Likes: 1, Replies: 1, Votes: 1, Abuse: 1,
		HalfLifeDays: DefaultHalfLifeDays,
	}
}

// Validate rejects negative weights and half-lives.
func (w CommentWeights) Validate() error {
	return checkWeights(w.HalfLifeDays, map[string]float64{
		"featured": w.Featured, "views": w.Views, "likes": w.Likes,
		"replies": w.Replies, "votes": w.Votes, "abuse": w.Abuse,
	})
}

// CommentBase is the undecayed weighted sum of comment signals.
func CommentBase(s CommentSignals, w CommentWeights) float64 {
	return w.Featured*FeaturedScore(s.Featured) +
		w.Views*Saturate(s.Views, CommentViewsAt) +
		w.Likes*Saturate(s.Likes, CommentLikesAt) +
		w.Replies*Saturate(s.Replies, CommentRepliesAt) +
		w.Votes*VoteBalance(s.YesVotes, s.NoVotes) +
		w.Abuse*AbuseScore(s.AbuseReports)
}

// Comment is the decayed comment score, aged from the creation date.
func Comment(s CommentSignals, w CommentWeights, now time.Time) float64 {
	return Decay(CommentBase(s, w), s.Created, w.HalfLifeDays, now)
}

// ReplySignals are the inputs of a reply score.
type ReplySignals struct {
	Likes        int64
	YesVotes     int64
	NoVotes      int64
	AbuseReports int64
	Created      *time.Time
}

// ReplyWeights weigh each reply signal.
type ReplyWeights struct {
	Likes        float64
	Votes        float64
	Abuse        float64
	HalfLifeDays float64
}

// DefaultReplyWeights weighs every signal 1 with a 30 day half-life.
func DefaultReplyWeights() ReplyWeights {
	return ReplyWeights{Likes: 1, Votes: 1, Abuse: 1, HalfLifeDays: DefaultHalfLifeDays}
}

// Validate rejects negative weights and half-lives.
func (w ReplyWeights) Validate() error {
	return checkWeights(w.HalfLifeDays, map[string]float64{
		"likes": w.Likes, "votes": w.Votes, "abuse": w.Abuse,
	})
}

// ReplyBase is the undecayed weighted sum of reply signals.
func ReplyBase(s ReplySignals, w ReplyWeights) float64 {
	return w.Likes*Saturate(s.Likes, ReplyLikesAt) +
		w.Votes*VoteBalance(s.YesVotes, s.NoVotes) +
		w.Abuse*AbuseScore(s.AbuseReports)
}

// Reply is the decayed reply score, aged from the creation date.
func Reply(s ReplySignals, w ReplyWeights, now time.Time) float64 {
	return Decay(ReplyBase(s, w), s.Created, w.HalfLifeDays, now)
}

// Weights bundles the per-kind weights a recompute run uses.
type Weights struct {
	Post    PostWeights
	Comment CommentWeights
	Reply   ReplyWeights
}

// DefaultWeights returns the default weights for every kind.
func DefaultWeights() Weights {
	return Weights{
		Post:    DefaultPostWeights(),
		Comment: DefaultCommentWeights(),
		Reply:   DefaultReplyWeights(),
	}
}

// WithHalfLife returns w with every kind's half-life set to days.
func (w Weights) WithHalfLife(days float64) Weights {
	w.Post.HalfLifeDays = days
	w.Comment.HalfLifeDays = days
	w.Reply.HalfLifeDays = days
	return w
}

// Validate validates every kind.
func (w Weights) Validate() error {
	if err := w.Post.Validate(); err != nil {
		return fmt.Errorf("post: %w", err)
	}
	if err := w.Comment.Validate(); err != nil {
		return fmt.Errorf("comment: %w", err)
	}
	if err := w.Reply.Validate(); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}
