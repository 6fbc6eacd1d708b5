// ABOUTME: Pending-cascade journal and the sweeper that resumes it
// ABOUTME: Entries outlive a cascade that failed or was interrupted

package bookstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nainya/readerstore/pkg/docstore"
)

// PendingCascade records a cascade that has started but not finished.
type PendingCascade struct {
	Id          string
	Level       Level
	EntityId    string
	StartedDate time.Time
	Attempts    int64
	LastError   string
}

// begin records the cascade, reusing the entry of an earlier attempt.
func (s *Store) begin(ctx context.Context, l Level, id string) (*PendingCascade, error) {
	doc, err := s.client.GetByIndex(ctx, PendingCascadesTable, EntityIndex, docstore.Key{string(l), id})
	if err != nil {
		return nil, fmt.Errorf("journal %s %s: %w", l, id, err)
	}
	if doc != nil {
		entry := new(PendingCascade)
		if err := docstore.Decode(doc, entry); err != nil {
			return nil, err
		}
		return entry, nil
	}
	now := s.clock()
	entry := &PendingCascade{
		Id:          ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Level:       l,
		EntityId:    id,
		StartedDate: now,
	}
	stored, err := docstore.UpsertAs(ctx, s.client, PendingCascadesTable, entry.Id, entry)
	if err != nil {
		return nil, fmt.Errorf("journal %s %s: %w", l, id, err)
	}
	return stored, nil
}

func (s *Store) finish(ctx context.Context, entry *PendingCascade) error {
	if err := s.client.Delete(ctx, PendingCascadesTable, entry.Id); err != nil {
		return fmt.Errorf("clear journal %s: %w", entry.Id, err)
	}
	return nil
}

// fail records the error on the entry. The cascade error is what the caller
// sees, so a failed write here is only logged.
func (s *Store) fail(ctx context.Context, entry *PendingCascade, cause error) {
	err := s.client.Update(ctx, PendingCascadesTable, entry.Id, docstore.Set("LastError", cause.Error()))
	if err != nil {
		s.log.Warn().Err(err).Str("entry", entry.Id).Msg("record cascade failure")
	}
	s.log.Warn().
		Err(cause).
		Str("level", string(entry.Level)).
		Str("id", entry.EntityId).
		Msg("cascade interrupted")
}

// PendingCascades lists journal entries oldest first. Limit 0 lists all.
func (s *Store) PendingCascades(ctx context.Context, limit int) ([]*PendingCascade, error) {
	return docstore.ScanAs[PendingCascade](ctx, s.client, PendingCascadesTable, docstore.Query{Limit: limit})
}

// SweepOptions bounds one sweep. Entries younger than MinAge are left to
// the cascade that is still running them.
type SweepOptions struct {
	Limit  int
	MinAge time.Duration
}

// SweepResult counts what a sweep did.
type SweepResult struct {
	Resumed int
	Failed  int
	Skipped int
}

// Sweep resumes pending cascades. Each attempt is counted on the entry
// before it runs; a failure leaves the entry for the next sweep.
func (s *Store) Sweep(ctx context.Context, opts SweepOptions) (SweepResult, error) {
	var res SweepResult
	entries, err := s.PendingCascades(ctx, opts.Limit)
	if err != nil {
		return res, fmt.Errorf("list pending cascades: %w", err)
	}
	now := s.clock()
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if now.Sub(entry.StartedDate) < opts.MinAge {
			res.Skipped++
			continue
		}
		plan, ok := plans[entry.Level]
		if !ok {
			s.log.Warn().Str("entry", entry.Id).Str("level", string(entry.Level)).Msg("unknown cascade level")
			res.Failed++
			continue
		}
		if err := s.client.Update(ctx, PendingCascadesTable, entry.Id, docstore.Increment("Attempts", 1)); err != nil {
			return res, fmt.Errorf("count attempt %s: %w", entry.Id, err)
		}
		if err := s.run(ctx, entry.Level, entry.EntityId, plan); err != nil {
			if errors.Is(err, context.Canceled) {
				return res, err
			}
			s.fail(ctx, entry, err)
			res.Failed++
			continue
		}
		if err := s.finish(ctx, entry); err != nil {
			return res, err
		}
		res.Resumed++
	}
	s.log.Info().
		Int("pending", len(entries)).
		Int("resumed", res.Resumed).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("cascade sweep")
	return res, nil
}
