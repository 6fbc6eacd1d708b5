// ABOUTME: Chapter repository; a chapter's path is (BookId, VolumeNumber, Number)
// ABOUTME: Ancestor fields are copied from the stored volume on create

package bookstore

import (
	"context"
	"fmt"

	"github.com/nainya/readerstore/pkg/docstore"
)

// ChapterRepository stores chapters.
type ChapterRepository struct {
	level level[Chapter, *Chapter]
}

// GetByID returns the chapter with id, or nil when there is none.
func (r *ChapterRepository) GetByID(ctx context.Context, id string) (*Chapter, error) {
	return r.level.get(ctx, id)
}

// GetByParentAndNumber returns the chapter numbered n under its direct parent.
func (r *ChapterRepository) GetByParentAndNumber(ctx context.Context, volumeID string, number int) (*Chapter, error) {
	return r.level.getBy(ctx, ParentNumberIndex, volumeID, number)
}

// GetByPathAndNumber looks the chapter up by its ancestor path.
func (r *ChapterRepository) GetByPathAndNumber(ctx context.Context, bookID string, volumeNumber, number int) (*Chapter, error) {
	return r.level.getBy(ctx, PathNumberIndex, bookID, volumeNumber, number)
}

// FindByParent lists the chapters of one parent.
func (r *ChapterRepository) FindByParent(ctx context.Context, volumeID string, opts FindOptions) ([]*Chapter, error) {
	return r.level.find(ctx, opts.query(VolumeIndex, docstore.Key{volumeID}))
}

// FindByPath lists the chapters of volume volumeNumber of the book.
func (r *ChapterRepository) FindByPath(ctx context.Context, bookID string, volumeNumber int, opts FindOptions) ([]*Chapter, error) {
	return r.level.find(ctx, opts.query(BookIndex, docstore.Key{bookID}, pathFilter(volumeNumber)...))
}

// FindByBook lists every chapter of the book.
func (r *ChapterRepository) FindByBook(ctx context.Context, bookID string, opts FindOptions) ([]*Chapter, error) {
	return r.level.find(ctx, opts.query(BookIndex, docstore.Key{bookID}))
}

// CountByParent counts the chapters of one parent.
func (r *ChapterRepository) CountByParent(ctx context.Context, volumeID string) (int64, error) {
	return r.level.count(ctx, docstore.Query{Index: VolumeIndex, Key: docstore.Key{volumeID}})
}

// CountByPath counts the chapters on one ancestor path.
func (r *ChapterRepository) CountByPath(ctx context.Context, bookID string, volumeNumber int) (int64, error) {
	return r.level.count(ctx, docstore.Query{Index: BookIndex, Key: docstore.Key{bookID}, Filter: pathFilter(volumeNumber)})
}

// CountByParents counts chapters per parent id, zero for parents without any.
func (r *ChapterRepository) CountByParents(ctx context.Context, volumeIDs []string) (map[string]int64, error) {
	return r.level.countBy(ctx, "VolumeId", volumeIDs)
}

// Create stores a new chapter under c.VolumeId with id VolumeId-Number.
func (r *ChapterRepository) Create(ctx context.Context, c *Chapter) (*Chapter, error) {
	if err := r.level.validate(c); err != nil {
		return nil, err
	}
	vol, err := r.level.s.Volumes.parent(ctx, "chapter", c.VolumeId)
	if err != nil {
		return nil, err
	}
	c.BookId, c.VolumeNumber = vol.BookId, vol.Number
	return r.level.create(ctx, c, vol.Id, c.Number, Coordinate{
		ParentIndex: ParentNumberIndex,
		ParentKey:   docstore.Key{vol.Id, c.Number},
		PathIndex:   PathNumberIndex,
		PathKey:     docstore.Key{vol.BookId, vol.Number, c.Number},
	})
}

// Update writes the mutable fields of updated over existing.
func (r *ChapterRepository) Update(ctx context.Context, existing, updated *Chapter) (*Chapter, error) {
	return r.level.update(ctx, existing, updated)
}

// Delete removes the chapter, its annotations, paragraphs and their
// annotations.
func (r *ChapterRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return invalid("chapter", "Id", "required")
	}
	return r.level.s.cascade(ctx, LevelChapter, id)
}

// IncrementCounter adds delta to a counter field store-side.
func (r *ChapterRepository) IncrementCounter(ctx context.Context, id, field string, delta int64) error {
	return r.level.increment(ctx, id, field, delta)
}

// SetCounter overwrites a counter or average with one atomic set.
func (r *ChapterRepository) SetCounter(ctx context.Context, id, field string, value float64) error {
	return r.level.setCounter(ctx, id, field, value)
}

func (r *ChapterRepository) parent(ctx context.Context, entity, id string) (*Chapter, error) {
	if id == "" {
		return nil, invalid(entity, "ChapterId", "required")
	}
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load chapter %s: %w", id, err)
	}
	if c == nil {
		return nil, parentMissing(entity, "ChapterId", id)
	}
	return c, nil
}

// pathFilter matches the ancestor numbers below BookId, outermost first.
func pathFilter(numbers ...int) []docstore.Predicate {
	fields := []string{"VolumeNumber", "ChapterNumber", "ParagraphNumber"}
	out := make([]docstore.Predicate, 0, len(numbers))
	for i, n := range numbers {
		out = append(out, docstore.Predicate{Field: fields[i], Op: docstore.Eq, Value: n})
	}
	return out
}
