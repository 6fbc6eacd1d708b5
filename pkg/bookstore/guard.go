// ABOUTME: Uniqueness guard over the parent and ancestor-path indexes
// ABOUTME: Check-then-act, not atomic with the following upsert

package bookstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/nainya/readerstore/pkg/docstore"
)

// Coordinate locates a candidate entity in both of its unique indexes.
type Coordinate struct {
	Table       string
	ParentIndex string
	ParentKey   docstore.Key
	PathIndex   string
	PathKey     docstore.Key
}

// Guard rejects writes whose ordinal is already taken.
type Guard struct {
	client docstore.Client
	log    zerolog.Logger
}

// NewGuard creates a guard reading through client.
func NewGuard(client docstore.Client, log zerolog.Logger) *Guard {
	return &Guard{client: client, log: log}
}

// AssertNoConflict looks the coordinate up by direct parent and then by
// ancestor path. A document found under either index whose id is not
// exceptID fails the check with a *DuplicateOrdinalError. Pass an empty
// exceptID on create.
func (g *Guard) AssertNoConflict(ctx context.Context, c Coordinate, exceptID string) error {
	if err := g.check(ctx, c.Table, c.ParentIndex, c.ParentKey, exceptID); err != nil {
		return err
	}
	if c.PathIndex == "" || (c.PathIndex == c.ParentIndex && slices.Equal(c.PathKey, c.ParentKey)) {
		return nil
	}
	return g.check(ctx, c.Table, c.PathIndex, c.PathKey, exceptID)
}

func (g *Guard) check(ctx context.Context, table, index string, key docstore.Key, exceptID string) error {
	// Two rows are enough to see past exceptID when the indexes have
	// already diverged.
	docs, err := g.client.Scan(ctx, table, docstore.Query{Index: index, Key: key, Limit: 2})
	if err != nil {
		return fmt.Errorf("uniqueness check %s.%s: %w", table, index, err)
	}
	for _, doc := range docs {
		id := docstore.IDOf(doc)
		if id == exceptID {
			continue
		}
		g.log.Info().
			Str("table", table).
			Str("index", index).
			Interface("key", key).
			Str("conflicting_id", id).
			Msg("duplicate ordinal rejected")
		return &DuplicateOrdinalError{Table: table, Index: index, Key: key, ConflictingID: id}
	}
	return nil
}
