// ABOUTME: Reply repository; a reply belongs to an existing comment
// ABOUTME: PostId is copied from the comment so replies list by post too

package content

import (
	"context"
	"fmt"
	"time"

	"github.com/nainya/readerstore/pkg/quality"
)

// ReplyRepository stores replies.
type ReplyRepository struct {
	repo repo[Reply, *Reply]
}

// Create stores a reply to an existing comment. PostId is taken from the
// comment.
func (r *ReplyRepository) Create(ctx context.Context, rep *Reply) (*Reply, error) {
	if err := r.repo.validate(rep); err != nil {
		return nil, err
	}
	c, err := r.repo.s.Comments.GetByID(ctx, rep.CommentId)
	if err != nil {
		return nil, fmt.Errorf("load comment %s: %w", rep.CommentId, err)
	}
	if c == nil {
		return nil, invalid("reply", "CommentId", rep.CommentId+" not found", ErrParentNotFound)
	}
	rep.PostId = c.PostId
	return r.repo.create(ctx, rep)
}

// GetByID returns the reply with id, or nil when there is none.
func (r *ReplyRepository) GetByID(ctx context.Context, id string) (*Reply, error) {
	return r.repo.get(ctx, id)
}

// FindByComment lists the replys of one comment.
func (r *ReplyRepository) FindByComment(ctx context.Context, commentID string, opts ListOptions) ([]*Reply, error) {
	return r.repo.find(ctx, opts.query(CommentIndex, commentID))
}

// FindByPost lists the replys of one post.
func (r *ReplyRepository) FindByPost(ctx context.Context, postID string, opts ListOptions) ([]*Reply, error) {
	return r.repo.find(ctx, opts.query(PostIndex, postID))
}

// FindByAuthor lists the replys of one author.
func (r *ReplyRepository) FindByAuthor(ctx context.Context, authorID string, opts ListOptions) ([]*Reply, error) {
	return r.repo.find(ctx, opts.query(AuthorIndex, authorID))
}

// FindByStatus lists the replys with a moderation status.
func (r *ReplyRepository) FindByStatus(ctx context.Context, status Status, opts ListOptions) ([]*Reply, error) {
	return r.repo.find(ctx, opts.query(StatusIndex, string(status)))
}

// CountByComment counts the replys of one comment.
func (r *ReplyRepository) CountByComment(ctx context.Context, commentID string) (int64, error) {
	return r.repo.count(ctx, CommentIndex, commentID)
}

// CountByPost counts the replys of one post.
func (r *ReplyRepository) CountByPost(ctx context.Context, postID string) (int64, error) {
	return r.repo.count(ctx, PostIndex, postID)
}

// CountByAuthor counts the replys of one author.
func (r *ReplyRepository) CountByAuthor(ctx context.Context, authorID string) (int64, error) {
	return r.repo.count(ctx, AuthorIndex, authorID)
}

// CountByStatus counts the replys with a moderation status.
func (r *ReplyRepository) CountByStatus(ctx context.Context, status Status) (int64, error) {
	return r.repo.count(ctx, StatusIndex, string(status))
}

// FindTopByQuality returns the highest-scoring replys with a status.
func (r *ReplyRepository) FindTopByQuality(ctx context.Context, status Status, limit int) ([]*Reply, error) {
	return r.repo.top(ctx, status, limit)
}

// Update writes Body and Status.
func (r *ReplyRepository) Update(ctx context.Context, existing, updated *Reply) (*Reply, error) {
	return r.repo.update(ctx, existing, updated)
}

// Delete removes the reply and runs its cascade.
func (r *ReplyRepository) Delete(ctx context.Context, id string) error {
	return r.repo.delete(ctx, id)
}

// IncrementCounter adds delta to a counter field store-side.
func (r *ReplyRepository) IncrementCounter(ctx context.Context, id, field string, delta int64) error {
	return r.repo.increment(ctx, id, field, delta)
}

// SetContentQuality overwrites the stored quality score.
func (r *ReplyRepository) SetContentQuality(ctx context.Context, id string, value float64) error {
	return r.repo.set(ctx, id, "ContentQuality", value)
}

// RecomputeQuality scores the stored reply at now and writes ContentQuality.
// A missing reply yields nil.
func (r *ReplyRepository) RecomputeQuality(ctx context.Context, id string, w quality.ReplyWeights, now time.Time) (*Reply, error) {
	if err := w.Validate(); err != nil {
		return nil, invalid("reply", "weights", err.Error(), err)
	}
	rep, err := r.GetByID(ctx, id)
	if err != nil || rep == nil {
		return nil, err
	}
	rep.ContentQuality = quality.Reply(rep.Signals(), w, now)
	if err := r.SetContentQuality(ctx, id, rep.ContentQuality); err != nil {
		return nil, err
	}
	return rep, nil
}
