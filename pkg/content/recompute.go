// ABOUTME: Batch quality recompute over every item of a status
// ABOUTME: Walks posts, comments and replies in id order, page by page

package content

import (
	"context"
	"fmt"
	"time"

	"github.com/nainya/readerstore/pkg/docstore"
	"github.com/nainya/readerstore/pkg/quality"
)

const DefaultBatch = 200

// Recomputer rescores stored content with one set of weights.
type Recomputer struct {
	store   *Store
	weights quality.Weights
	now     func() time.Time
}

// NewRecomputer validates w and returns a recomputer over s.
func NewRecomputer(s *Store, w quality.Weights) (*Recomputer, error) {
	if err := w.Validate(); err != nil {
		return nil, invalid("weights", "", err.Error(), err)
	}
	return &Recomputer{store: s, weights: w, now: s.now}, nil
}

// RecomputeResult counts items rescored per kind.
type RecomputeResult struct {
	Posts    int
	Comments int
	Replies  int
}

// Total is the number of items rescored.
func (r RecomputeResult) Total() int { return r.Posts + r.Comments + r.Replies }

// Run rescores every item with the given status at one reference time.
func (rc *Recomputer) Run(ctx context.Context, status Status, batch int) (RecomputeResult, error) {
	if batch <= 0 {
		batch = DefaultBatch
	}
	now := rc.now()
	var (
		res RecomputeResult
		err error
	)
	res.Posts, err = walk(ctx, rc.store.client, PostsTable, status, batch, func(p *Post) float64 {
		return quality.Post(p.Signals(), rc.weights.Post, now)
	})
	if err != nil {
		return res, err
	}
	res.Comments, err = walk(ctx, rc.store.client, CommentsTable, status, batch, func(c *Comment) float64 {
		return quality.Comment(c.Signals(), rc.weights.Comment, now)
	})
	if err != nil {
		return res, err
	}
	res.Replies, err = walk(ctx, rc.store.client, RepliesTable, status, batch, func(r *Reply) float64 {
		return quality.Reply(r.Signals(), rc.weights.Reply, now)
	})
	if err != nil {
		return res, err
	}
	rc.store.log.Info().
		Str("status", string(status)).
		Int("posts", res.Posts).
		Int("comments", res.Comments).
		Int("replies", res.Replies).
		Msg("quality recomputed")
	return res, nil
}

func walk[T any](ctx context.Context, c docstore.Client, table string, status Status, batch int, score func(*T) float64) (int, error) {
	n := 0
	for skip := 0; ; skip += batch {
		docs, err := c.Scan(ctx, table, docstore.Query{
			Index: StatusIndex,
			Key:   docstore.Key{string(status)},
			Skip:  skip,
			Limit: batch,
		})
		if err != nil {
			return n, fmt.Errorf("scan %s: %w", table, err)
		}
		items, err := docstore.DecodeAll[T](docs)
		if err != nil {
			return n, err
		}
		for i, v := range items {
			id := docstore.IDOf(docs[i])
			if err := c.Update(ctx, table, id, docstore.Set("ContentQuality", score(v))); err != nil {
				return n, fmt.Errorf("score %s %s: %w", table, id, err)
			}
			n++
		}
		if len(docs) < batch {
			return n, nil
		}
	}
}
