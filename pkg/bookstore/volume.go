// ABOUTME: Volume repository; a volume's path is (BookId, Number)
// ABOUTME: so its parent and path coordinates coincide

package bookstore

import (
	"context"
	"fmt"

	"github.com/nainya/readerstore/pkg/docstore"
)

// VolumeRepository stores volumes.
type VolumeRepository struct {
	level level[Volume, *Volume]
}

// GetByID returns the volume with id, or nil when there is none.
func (r *VolumeRepository) GetByID(ctx context.Context, id string) (*Volume, error) {
	return r.level.get(ctx, id)
}

// GetByParentAndNumber returns the volume numbered n under its direct parent.
func (r *VolumeRepository) GetByParentAndNumber(ctx context.Context, bookID string, number int) (*Volume, error) {
	return r.level.getBy(ctx, ParentNumberIndex, bookID, number)
}

// GetByPathAndNumber is GetByParentAndNumber; a volume's only ancestor is
// its book.
func (r *VolumeRepository) GetByPathAndNumber(ctx context.Context, bookID string, number int) (*Volume, error) {
	return r.GetByParentAndNumber(ctx, bookID, number)
}

// FindByParent lists the volumes of one parent.
func (r *VolumeRepository) FindByParent(ctx context.Context, bookID string, opts FindOptions) ([]*Volume, error) {
	return r.level.find(ctx, opts.query(BookIndex, docstore.Key{bookID}))
}

// CountByParent counts the volumes of one parent.
func (r *VolumeRepository) CountByParent(ctx context.Context, bookID string) (int64, error) {
	return r.level.count(ctx, docstore.Query{Index: BookIndex, Key: docstore.Key{bookID}})
}

// CountByParents returns volume counts per book id.
func (r *VolumeRepository) CountByParents(ctx context.Context, bookIDs []string) (map[string]int64, error) {
	return r.level.countBy(ctx, "BookId", bookIDs)
}

// Create stores a new volume under v.BookId with id BookId-Number.
func (r *VolumeRepository) Create(ctx context.Context, v *Volume) (*Volume, error) {
	if err := r.level.validate(v); err != nil {
		return nil, err
	}
	book, err := r.level.s.Books.parent(ctx, "volume", v.BookId)
	if err != nil {
		return nil, err
	}
	key := docstore.Key{book.Id, v.Number}
	return r.level.create(ctx, v, book.Id, v.Number, Coordinate{
		ParentIndex: ParentNumberIndex,
		ParentKey:   key,
		PathIndex:   ParentNumberIndex,
		PathKey:     key,
	})
}

// Update writes the mutable fields of updated over existing.
func (r *VolumeRepository) Update(ctx context.Context, existing, updated *Volume) (*Volume, error) {
	return r.level.update(ctx, existing, updated)
}

// Delete removes the volume, its annotations, subjects, chapters and
// everything below them.
func (r *VolumeRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return invalid("volume", "Id", "required")
	}
	return r.level.s.cascade(ctx, LevelVolume, id)
}

// IncrementCounter adds delta to a counter field store-side.
func (r *VolumeRepository) IncrementCounter(ctx context.Context, id, field string, delta int64) error {
	return r.level.increment(ctx, id, field, delta)
}

// SetCounter overwrites a counter or average with one atomic set.
func (r *VolumeRepository) SetCounter(ctx context.Context, id, field string, value float64) error {
	return r.level.setCounter(ctx, id, field, value)
}

func (r *VolumeRepository) parent(ctx context.Context, entity, id string) (*Volume, error) {
	if id == "" {
		return nil, invalid(entity, "VolumeId", "required")
	}
	v, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load volume %s: %w", id, err)
	}
	if v == nil {
		return nil, parentMissing(entity, "VolumeId", id)
	}
	return v, nil
}
