// ABOUTME: Per-signal normalizers mapping raw counters onto [0,1]
// ABOUTME: Vote balance maps onto [-1,1], abuse onto [-1,0]

package quality

// Saturation points: the counter value at which a signal reaches 1.
const (
	PostViewsAt     = 1000
	PostBookmarksAt = 100
	PostCommentsAt  = 50
	PostLikesAt     = 50
	PostSharesAt    = 20

	CommentViewsAt   = 500
	CommentLikesAt   = 25
	CommentRepliesAt = 10

	ReplyLikesAt = 10

	VotesAt        = 10
	AbuseReportsAt = 5

	// MinRatings is how many ratings an item needs before its average counts.
	MinRatings = 5
	// MaxRating is the top of the rating scale.
	MaxRating = 5.0
	// NeutralRating is the score of an item with too few ratings.
	NeutralRating = 0.6

	// TagsAt is the tag count at which the tags bonus is full.
	TagsAt = 5
)

// Saturate maps count onto [0,1], reaching 1 at count == at.
func Saturate(count int64, at float64) float64 {
	if count <= 0 || at <= 0 {
		return 0
	}
	return min(1, float64(count)/at)
}

// VoteBalance is the saturated yes share minus the saturated no share.
func VoteBalance(yes, no int64) float64 {
	return Saturate(yes, VotesAt) - Saturate(no, VotesAt)
}

// RatingsScore is the average normalized to [0,1] once there are enough
// ratings, and NeutralRating before that.
func RatingsScore(count int64, average float64) float64 {
	if count < MinRatings {
		return NeutralRating
	}
	return clamp(average/MaxRating, 0, 1)
}

// TagsScore rewards tagged items: 0 without tags, 0.8 plus up to 0.2
// growing with the tag count.
func TagsScore(n int) float64 {
	if n <= 0 {
		return 0
	}
	return 0.8 + 0.2*min(1, float64(n)/TagsAt)
}

// FeaturedScore is 1 for featured items.
func FeaturedScore(featured bool) float64 {
	if featured {
		return 1
	}
	return 0
}

// AbuseScore penalizes reported items, down to -1.
func AbuseScore(reports int64) float64 {
	return -Saturate(reports, AbuseReportsAt)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
