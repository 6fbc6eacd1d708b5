// ABOUTME: Generic repository shared by posts, comments and replies
// ABOUTME: Create, update, lookups, counters and single-field quality writes

package content

import (
	"context"
	"fmt"
	"time"

	"github.com/nainya/readerstore/pkg/docstore"
)

type item[T any] interface {
	*T
	ident() string
	setIdent(id string)
	reset(now time.Time)
	status() Status
	setStatus(s Status)
	created() time.Time
	setModified(t time.Time)
	adopt(existing *T)
	mutable() []docstore.Expr
}

// ListOptions pages a list query. The default order is CreatedDate,
// newest first.
type ListOptions struct {
	Filter    []docstore.Predicate
	OrderBy   string
	Ascending bool
	Skip      int
	Limit     int
}

func (o ListOptions) query(index string, key any) docstore.Query {
	q := docstore.Query{
		Index:      index,
		Key:        docstore.Key{key},
		Filter:     o.Filter,
		OrderBy:    o.OrderBy,
		Descending: !o.Ascending,
		Skip:       o.Skip,
		Limit:      o.Limit,
	}
	if q.OrderBy == "" {
		q.OrderBy = "CreatedDate"
	}
	return q
}

type repo[T any, P item[T]] struct {
	s        *Store
	kind     string
	table    string
	counters map[string]bool
}

func (r *repo[T, P]) get(ctx context.Context, id string) (P, error) {
	if id == "" {
		return nil, nil
	}
	v, err := docstore.GetAs[T](ctx, r.s.client, r.table, id)
	return P(v), err
}

func (r *repo[T, P]) find(ctx context.Context, q docstore.Query) ([]P, error) {
	vs, err := docstore.ScanAs[T](ctx, r.s.client, r.table, q)
	if err != nil {
		return nil, err
	}
	out := make([]P, len(vs))
	for i, v := range vs {
		out[i] = P(v)
	}
	return out, nil
}

func (r *repo[T, P]) count(ctx context.Context, index string, key any) (int64, error) {
	return r.s.client.Count(ctx, r.table, docstore.Query{Index: index, Key: docstore.Key{key}})
}

func (r *repo[T, P]) validate(v P) error {
	if v == nil {
		return invalid(r.kind, "", "nil input", nil)
	}
	if err := r.s.validate.Struct(v); err != nil {
		return fromValidator(r.kind, err)
	}
	return nil
}

// create assigns an id when missing, defaults the status, zeroes counters
// and quality, stamps both dates and upserts.
func (r *repo[T, P]) create(ctx context.Context, v P) (P, error) {
	if v.ident() == "" {
		v.setIdent(r.s.newID())
	}
	if v.status() == "" {
		v.setStatus(StatusPending)
	}
	v.reset(r.s.clock())
	stored, err := docstore.UpsertAs[T](ctx, r.s.client, r.table, v.ident(), (*T)(v))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", r.kind, err)
	}
	return P(stored), nil
}

func (r *repo[T, P]) update(ctx context.Context, existing, updated P) (P, error) {
	if existing == nil || existing.ident() == "" {
		return nil, invalid(r.kind, "existing", "update requires the stored document", nil)
	}
	if updated == nil {
		return nil, invalid(r.kind, "", "nil input", nil)
	}
	updated.adopt((*T)(existing))
	if updated.status() == "" {
		updated.setStatus(existing.status())
	}
	if err := r.validate(updated); err != nil {
		return nil, err
	}
	now := r.s.clock()
	updated.setModified(now)
	exprs := append(updated.mutable(), docstore.Set("ModifiedDate", now))
	if err := r.s.client.Update(ctx, r.table, existing.ident(), exprs...); err != nil {
		return nil, fmt.Errorf("update %s %s: %w", r.kind, existing.ident(), err)
	}
	return r.get(ctx, existing.ident())
}

func (r *repo[T, P]) delete(ctx context.Context, id string) error {
	if id == "" {
		return invalid(r.kind, "Id", "required", nil)
	}
	if err := r.s.client.Delete(ctx, r.table, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", r.kind, id, err)
	}
	return nil
}

func (r *repo[T, P]) increment(ctx context.Context, id, field string, delta int64) error {
	if id == "" {
		return invalid(r.kind, "Id", "required", nil)
	}
	if !r.counters[field] {
		return invalid(r.kind, field, "not a counter", ErrUnknownCounter)
	}
	if err := r.s.client.Update(ctx, r.table, id, docstore.Increment(field, delta)); err != nil {
		return fmt.Errorf("increment %s %s.%s: %w", r.kind, id, field, err)
	}
	return nil
}

func (r *repo[T, P]) set(ctx context.Context, id, field string, value any) error {
	if id == "" {
		return invalid(r.kind, "Id", "required", nil)
	}
	if err := r.s.client.Update(ctx, r.table, id, docstore.Set(field, value)); err != nil {
		return fmt.Errorf("set %s %s.%s: %w", r.kind, id, field, err)
	}
	return nil
}

// top lists items of a status by descending ContentQuality.
func (r *repo[T, P]) top(ctx context.Context, status Status, limit int) ([]P, error) {
	return r.find(ctx, docstore.Query{
		Index:      StatusIndex,
		Key:        docstore.Key{string(status)},
		OrderBy:    "ContentQuality",
		Descending: true,
		Limit:      limit,
	})
}
