// ABOUTME: Comment repository; a comment belongs to an existing post
// ABOUTME: Listed by post, author or status, rescored from its creation date

package content

import (
	"context"
	"fmt"
	"time"

	"github.com/nainya/readerstore/pkg/quality"
)

// CommentRepository stores comments.
type CommentRepository struct {
	repo repo[Comment, *Comment]
}

// Create stores a comment on an existing post.
func (r *CommentRepository) Create(ctx context.Context, c *Comment) (*Comment, error) {
	if err := r.repo.validate(c); err != nil {
		return nil, err
	}
	post, err := r.repo.s.Posts.GetByID(ctx, c.PostId)
	if err != nil {
		return nil, fmt.Errorf("load post %s: %w", c.PostId, err)
	}
	if post == nil {
		return nil, invalid("comment", "PostId", c.PostId+" not found", ErrParentNotFound)
	}
	return r.repo.create(ctx, c)
}

// GetByID returns the comment with id, or nil when there is none.
func (r *CommentRepository) GetByID(ctx context.Context, id string) (*Comment, error) {
	return r.repo.get(ctx, id)
}

// FindByPost lists the comments of one post.
func (r *CommentRepository) FindByPost(ctx context.Context, postID string, opts ListOptions) ([]*Comment, error) {
	return r.repo.find(ctx, opts.query(PostIndex, postID))
}

// FindByAuthor lists the comments of one author.
func (r *CommentRepository) FindByAuthor(ctx context.Context, authorID string, opts ListOptions) ([]*Comment, error) {
	return r.repo.find(ctx, opts.query(AuthorIndex, authorID))
}

// FindByStatus lists the comments with a moderation status.
func (r *CommentRepository) FindByStatus(ctx context.Context, status Status, opts ListOptions) ([]*Comment, error) {
	return r.repo.find(ctx, opts.query(StatusIndex, string(status)))
}

// CountByPost counts the comments of one post.
func (r *CommentRepository) CountByPost(ctx context.Context, postID string) (int64, error) {
	return r.repo.count(ctx, PostIndex, postID)
}

// CountByAuthor counts the comments of one author.
func (r *CommentRepository) CountByAuthor(ctx context.Context, authorID string) (int64, error) {
	return r.repo.count(ctx, AuthorIndex, authorID)
}

// CountByStatus counts the comments with a moderation status.
func (r *CommentRepository) CountByStatus(ctx context.Context, status Status) (int64, error) {
	return r.repo.count(ctx, StatusIndex, string(status))
}

// FindTopByQuality returns the highest-scoring comments with a status.
func (r *CommentRepository) FindTopByQuality(ctx context.Context, status Status, limit int) ([]*Comment, error) {
	return r.repo.top(ctx, status, limit)
}

// Update writes Body, Status and IsFeatured.
func (r *CommentRepository) Update(ctx context.Context, existing, updated *Comment) (*Comment, error) {
	return r.repo.update(ctx, existing, updated)
}

// Delete removes the comment and runs its cascade.
func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	return r.repo.delete(ctx, id)
}

// IncrementCounter adds delta to a counter field store-side.
func (r *CommentRepository) IncrementCounter(ctx context.Context, id, field string, delta int64) error {
	return r.repo.increment(ctx, id, field, delta)
}

// SetContentQuality overwrites the stored quality score.
func (r *CommentRepository) SetContentQuality(ctx context.Context, id string, value float64) error {
	return r.repo.set(ctx, id, "ContentQuality", value)
}

// RecomputeQuality scores the stored comment at now and writes
// ContentQuality. A missing comment yields nil.
func (r *CommentRepository) RecomputeQuality(ctx context.Context, id string, w quality.CommentWeights, now time.Time) (*Comment, error) {
	if err := w.Validate(); err != nil {
		return nil, invalid("comment", "weights", err.Error(), err)
	}
	c, err := r.GetByID(ctx, id)
	if err != nil || c == nil {
		return nil, err
	}
	c.ContentQuality = quality.Comment(c.Signals(), w, now)
	if err := r.SetContentQuality(ctx, id, c.ContentQuality); err != nil {
		return nil, err
	}
	return c, nil
}
