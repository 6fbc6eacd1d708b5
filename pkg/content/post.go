// ABOUTME: Post repository: moderation status, engagement counters, quality
// ABOUTME: Ratings average and quality score are set with single-field updates

package content

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nainya/readerstore/pkg/quality"
)

// PostRepository stores posts.
type PostRepository struct {
	repo repo[Post, *Post]
}

// Create stores a new post with status pending unless set.
func (r *PostRepository) Create(ctx context.Context, p *Post) (*Post, error) {
	if err := r.repo.validate(p); err != nil {
		return nil, err
	}
	return r.repo.create(ctx, p)
}

// GetByID returns the post with id, or nil when there is none.
func (r *PostRepository) GetByID(ctx context.Context, id string) (*Post, error) {
	return r.repo.get(ctx, id)
}

// FindByAuthor lists the posts of one author.
func (r *PostRepository) FindByAuthor(ctx context.Context, authorID string, opts ListOptions) ([]*Post, error) {
	return r.repo.find(ctx, opts.query(AuthorIndex, authorID))
}

// FindByStatus lists the posts with a moderation status.
func (r *PostRepository) FindByStatus(ctx context.Context, status Status, opts ListOptions) ([]*Post, error) {
	return r.repo.find(ctx, opts.query(StatusIndex, string(status)))
}

// CountByAuthor counts the posts of one author.
func (r *PostRepository) CountByAuthor(ctx context.Context, authorID string) (int64, error) {
	return r.repo.count(ctx, AuthorIndex, authorID)
}

// CountByStatus counts the posts with a moderation status.
func (r *PostRepository) CountByStatus(ctx context.Context, status Status) (int64, error) {
	return r.repo.count(ctx, StatusIndex, string(status))
}

// FindTopByQuality lists the best scored posts of a status.
func (r *PostRepository) FindTopByQuality(ctx context.Context, status Status, limit int) ([]*Post, error) {
	return r.repo.top(ctx, status, limit)
}

// Update writes Title, Body, Tags, Status, PublishedDate and IsFeatured.
func (r *PostRepository) Update(ctx context.Context, existing, updated *Post) (*Post, error) {
	return r.repo.update(ctx, existing, updated)
}

// Delete removes the post and runs its cascade.
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	return r.repo.delete(ctx, id)
}

// IncrementCounter adds delta to a counter field store-side.
func (r *PostRepository) IncrementCounter(ctx context.Context, id, field string, delta int64) error {
	return r.repo.increment(ctx, id, field, delta)
}

// SetRatingsAverage overwrites RatingsAverageValue.
func (r *PostRepository) SetRatingsAverage(ctx context.Context, id string, value float64) error {
	if math.IsNaN(value) || value < 0 || value > quality.MaxRating {
		return invalid("post", "RatingsAverageValue", fmt.Sprintf("out of range: %v", value), nil)
	}
	return r.repo.set(ctx, id, "RatingsAverageValue", value)
}

// SetContentQuality overwrites the stored quality score.
func (r *PostRepository) SetContentQuality(ctx context.Context, id string, value float64) error {
	return r.repo.set(ctx, id, "ContentQuality", value)
}

// RecomputeQuality scores the stored post at now and writes ContentQuality.
// A missing post yields nil.
func (r *PostRepository) RecomputeQuality(ctx context.Context, id string, w quality.PostWeights, now time.Time) (*Post, error) {
	if err := w.Validate(); err != nil {
		return nil, invalid("post", "weights", err.Error(), err)
	}
	p, err := r.GetByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	p.ContentQuality = quality.Post(p.Signals(), w, now)
	if err := r.SetContentQuality(ctx, id, p.ContentQuality); err != nil {
		return nil, err
	}
	return p, nil
}
