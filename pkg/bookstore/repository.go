// ABOUTME: Generic level repository shared by every hierarchy entity
// ABOUTME: Create, update, lookups, counters; parent resolution lives per level

package bookstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nainya/readerstore/pkg/docstore"
)

// node is the contract model types satisfy so one level implementation
// serves all of them.
type node[T any] interface {
	*T
	ident() string
	setIdent(id string)
	zeroCounters()
	timestamps() (created, modified time.Time)
	setTimestamps(created, modified time.Time)
	adopt(existing *T)
	mutable() []docstore.Expr
}

// FindOptions pages and orders a list query. The default order is Number
// ascending; Limit 0 returns everything.
type FindOptions struct {
	Filter     []docstore.Predicate
	OrderBy    string
	Descending bool
	Skip       int
	Limit      int
}

func (o FindOptions) query(index string, key docstore.Key, filter ...docstore.Predicate) docstore.Query {
	q := docstore.Query{
		Index:      index,
		Key:        key,
		Filter:     append(filter, o.Filter...),
		OrderBy:    o.OrderBy,
		Descending: o.Descending,
		Skip:       o.Skip,
		Limit:      o.Limit,
	}
	if q.OrderBy == "" {
		q.OrderBy = "Number"
	}
	return q
}

type level[T any, P node[T]] struct {
	s        *Store
	entity   string
	table    string
	counters map[string]bool
	gauges   map[string]bool
}

func newLevel[T any, P node[T]](s *Store, entity, table string, counters, gauges map[string]bool) level[T, P] {
	return level[T, P]{s: s, entity: entity, table: table, counters: counters, gauges: gauges}
}

func (l *level[T, P]) get(ctx context.Context, id string) (P, error) {
	if id == "" {
		return nil, nil
	}
	v, err := docstore.GetAs[T](ctx, l.s.client, l.table, id)
	return P(v), err
}

func (l *level[T, P]) getBy(ctx context.Context, index string, key ...any) (P, error) {
	doc, err := l.s.client.GetByIndex(ctx, l.table, index, key)
	if err != nil || doc == nil {
		return nil, err
	}
	v := P(new(T))
	if err := docstore.Decode(doc, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (l *level[T, P]) find(ctx context.Context, q docstore.Query) ([]P, error) {
	docs, err := l.s.client.Scan(ctx, l.table, q)
	if err != nil {
		return nil, err
	}
	out := make([]P, 0, len(docs))
	for _, doc := range docs {
		v := P(new(T))
		if err := docstore.Decode(doc, v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (l *level[T, P]) count(ctx context.Context, q docstore.Query) (int64, error) {
	return l.s.client.Count(ctx, l.table, q)
}

// countBy returns child counts per parent id, zero for parents without
// children.
func (l *level[T, P]) countBy(ctx context.Context, field string, ids []string) (map[string]int64, error) {
	got, err := l.s.client.GroupCount(ctx, l.table, field, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(ids))
	for _, id := range ids {
		out[id] = got[id]
	}
	return out, nil
}

func (l *level[T, P]) validate(v P) error {
	if v == nil {
		return invalid(l.entity, "", "nil input")
	}
	if err := l.s.validate.Struct(v); err != nil {
		return fromValidator(l.entity, err)
	}
	return nil
}

// create runs the guard, derives the id, zeroes counters and upserts. The
// caller has validated v and copied its ancestor path from the parent.
func (l *level[T, P]) create(ctx context.Context, v P, parentID string, number int, c Coordinate) (P, error) {
	c.Table = l.table
	if err := l.s.guard.AssertNoConflict(ctx, c, ""); err != nil {
		if existing, ok := l.retried(ctx, err, v, c); ok {
			return existing, nil
		}
		return nil, err
	}
	v.setIdent(DeriveID(parentID, number))
	return l.put(ctx, v)
}

// put zeroes counters, stamps and upserts at the entity's id.
func (l *level[T, P]) put(ctx context.Context, v P) (P, error) {
	v.zeroCounters()
	now := l.s.clock()
	v.setTimestamps(now, now)
	stored, err := docstore.UpsertAs[T](ctx, l.s.client, l.table, v.ident(), (*T)(v))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", l.entity, err)
	}
	return P(stored), nil
}

// retried reports whether a guard conflict is a repeat of an earlier
// identical create: the holder of the coordinate equals v once counters are
// zeroed and timestamps ignored, and nothing else holds either index.
func (l *level[T, P]) retried(ctx context.Context, conflict error, v P, c Coordinate) (P, bool) {
	var dup *DuplicateOrdinalError
	if !errors.As(conflict, &dup) {
		return nil, false
	}
	existing, err := l.get(ctx, dup.ConflictingID)
	if err != nil || existing == nil {
		return nil, false
	}
	candidate := P(new(T))
	*candidate = *(*T)(v)
	candidate.setIdent(existing.ident())
	candidate.zeroCounters()
	candidate.setTimestamps(existing.timestamps())
	held := P(new(T))
	*held = *(*T)(existing)
	held.zeroCounters()

	a, errA := docstore.Encode(candidate)
	b, errB := docstore.Encode(held)
	if errA != nil || errB != nil || !bytes.Equal(a, b) {
		return nil, false
	}
	if err := l.s.guard.AssertNoConflict(ctx, c, existing.ident()); err != nil {
		return nil, false
	}
	return existing, true
}

// update keeps the identity, counters and creation date of existing and
// writes only the mutable fields of updated, as one atomic set.
func (l *level[T, P]) update(ctx context.Context, existing, updated P) (P, error) {
	if existing == nil || existing.ident() == "" {
		return nil, invalid(l.entity, "existing", "update requires the stored document")
	}
	if updated == nil {
		return nil, invalid(l.entity, "", "nil input")
	}
	updated.adopt((*T)(existing))
	if err := l.validate(updated); err != nil {
		return nil, err
	}
	created, _ := existing.timestamps()
	now := l.s.clock()
	updated.setTimestamps(created, now)

	exprs := append(updated.mutable(), docstore.Set("ModifiedDate", now))
	if err := l.s.client.Update(ctx, l.table, existing.ident(), exprs...); err != nil {
		return nil, fmt.Errorf("update %s %s: %w", l.entity, existing.ident(), err)
	}
	return l.get(ctx, existing.ident())
}

// increment adds delta to an integer counter store-side.
func (l *level[T, P]) increment(ctx context.Context, id, field string, delta int64) error {
	if id == "" {
		return invalid(l.entity, "Id", "required")
	}
	if !l.counters[field] {
		return &ValidationError{Entity: l.entity, Field: field, Reason: "not a counter", Err: ErrUnknownCounter}
	}
	if err := l.s.client.Update(ctx, l.table, id, docstore.Increment(field, delta)); err != nil {
		return fmt.Errorf("increment %s %s.%s: %w", l.entity, id, field, err)
	}
	return nil
}

// setCounter overwrites a counter or average with one atomic set.
func (l *level[T, P]) setCounter(ctx context.Context, id, field string, value float64) error {
	if id == "" {
		return invalid(l.entity, "Id", "required")
	}
	var v any
	switch {
	case l.gauges[field]:
		v = value
	case l.counters[field]:
		if value != math.Trunc(value) {
			return invalid(l.entity, field, "integer counter")
		}
		v = int64(value)
	default:
		return &ValidationError{Entity: l.entity, Field: field, Reason: "not a counter", Err: ErrUnknownCounter}
	}
	if err := l.s.client.Update(ctx, l.table, id, docstore.Set(field, v)); err != nil {
		return fmt.Errorf("set %s %s.%s: %w", l.entity, id, field, err)
	}
	return nil
}
