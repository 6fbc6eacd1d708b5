// ABOUTME: Book repository, the root level of the hierarchy
// ABOUTME: Roots take a caller id or a generated UUID; no ordinal guard

package bookstore

import (
	"context"
	"fmt"

	"github.com/nainya/readerstore/pkg/docstore"
)

// BookRepository stores books.
type BookRepository struct {
	level level[Book, *Book]
}

// GetByID returns the book or nil.
func (r *BookRepository) GetByID(ctx context.Context, id string) (*Book, error) {
	return r.level.get(ctx, id)
}

// Find lists books. The default order is Title.
func (r *BookRepository) Find(ctx context.Context, opts FindOptions) ([]*Book, error) {
	if opts.OrderBy == "" {
		opts.OrderBy = "Title"
	}
	return r.level.find(ctx, opts.query("", nil))
}

// Count counts books matching filter.
func (r *BookRepository) Count(ctx context.Context, filter ...docstore.Predicate) (int64, error) {
	return r.level.count(ctx, docstore.Query{Filter: filter})
}

// Create stores a new book. An existing id is replaced, as with any upsert.
func (r *BookRepository) Create(ctx context.Context, b *Book) (*Book, error) {
	if err := r.level.validate(b); err != nil {
		return nil, err
	}
	if b.Id == "" {
		b.Id = NewRootID()
	}
	return r.level.put(ctx, b)
}

// Update writes the mutable fields of updated onto existing.
func (r *BookRepository) Update(ctx context.Context, existing, updated *Book) (*Book, error) {
	return r.level.update(ctx, existing, updated)
}

// Delete removes the book and its whole subtree.
func (r *BookRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return invalid("book", "Id", "required")
	}
	return r.level.s.cascade(ctx, LevelBook, id)
}

// IncrementCounter adds delta to a counter of the book.
func (r *BookRepository) IncrementCounter(ctx context.Context, id, field string, delta int64) error {
	return r.level.increment(ctx, id, field, delta)
}

// SetCounter overwrites a counter or RatingsAverageValue.
func (r *BookRepository) SetCounter(ctx context.Context, id, field string, value float64) error {
	return r.level.setCounter(ctx, id, field, value)
}

func (r *BookRepository) parent(ctx context.Context, entity, id string) (*Book, error) {
	if id == "" {
		return nil, invalid(entity, "BookId", "required")
	}
	b, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load book %s: %w", id, err)
	}
	if b == nil {
		return nil, parentMissing(entity, "BookId", id)
	}
	return b, nil
}
