// ABOUTME: Subject repository; subjects group paragraphs of one volume
// ABOUTME: Deleting a subject detaches its paragraphs instead of removing them

package bookstore

import (
	"context"
	"fmt"

	"github.com/nainya/readerstore/pkg/docstore"
)

// SubjectRepository stores subjects.
type SubjectRepository struct {
	level level[Subject, *Subject]
}

// GetByID returns the subject with id, or nil when there is none.
func (r *SubjectRepository) GetByID(ctx context.Context, id string) (*Subject, error) {
	return r.level.get(ctx, id)
}

// GetByParentAndNumber returns the subject numbered n under its direct parent.
func (r *SubjectRepository) GetByParentAndNumber(ctx context.Context, volumeID string, number int) (*Subject, error) {
	return r.level.getBy(ctx, ParentNumberIndex, volumeID, number)
}

// GetByPathAndNumber looks the subject up by its ancestor path.
func (r *SubjectRepository) GetByPathAndNumber(ctx context.Context, bookID string, volumeNumber, number int) (*Subject, error) {
	return r.level.getBy(ctx, PathNumberIndex, bookID, volumeNumber, number)
}

// FindByParent lists the subjects of one parent.
func (r *SubjectRepository) FindByParent(ctx context.Context, volumeID string, opts FindOptions) ([]*Subject, error) {
	return r.level.find(ctx, opts.query(VolumeIndex, docstore.Key{volumeID}))
}

// FindByPath lists the subjects of volume volumeNumber of the book.
func (r *SubjectRepository) FindByPath(ctx context.Context, bookID string, volumeNumber int, opts FindOptions) ([]*Subject, error) {
	return r.level.find(ctx, opts.query(BookIndex, docstore.Key{bookID}, pathFilter(volumeNumber)...))
}

// CountByParent counts the subjects of one parent.
func (r *SubjectRepository) CountByParent(ctx context.Context, volumeID string) (int64, error) {
	return r.level.count(ctx, docstore.Query{Index: VolumeIndex, Key: docstore.Key{volumeID}})
}

// CountByPath counts the subjects on one ancestor path.
func (r *SubjectRepository) CountByPath(ctx context.Context, bookID string, volumeNumber int) (int64, error) {
	return r.level.count(ctx, docstore.Query{Index: BookIndex, Key: docstore.Key{bookID}, Filter: pathFilter(volumeNumber)})
}

// CountByParents counts subjects per parent id, zero for parents without any.
func (r *SubjectRepository) CountByParents(ctx context.Context, volumeIDs []string) (map[string]int64, error) {
	return r.level.countBy(ctx, "VolumeId", volumeIDs)
}

// Create stores a new subject under s.VolumeId with id VolumeId-Number.
func (r *SubjectRepository) Create(ctx context.Context, s *Subject) (*Subject, error) {
	if err := r.level.validate(s); err != nil {
		return nil, err
	}
	vol, err := r.level.s.Volumes.parent(ctx, "subject", s.VolumeId)
	if err != nil {
		return nil, err
	}
	s.BookId, s.VolumeNumber = vol.BookId, vol.Number
	return r.level.create(ctx, s, vol.Id, s.Number, Coordinate{
		ParentIndex: ParentNumberIndex,
		ParentKey:   docstore.Key{vol.Id, s.Number},
		PathIndex:   PathNumberIndex,
		PathKey:     docstore.Key{vol.BookId, vol.Number, s.Number},
	})
}

// Update writes the mutable fields of updated over existing.
func (r *SubjectRepository) Update(ctx context.Context, existing, updated *Subject) (*Subject, error) {
	return r.level.update(ctx, existing, updated)
}

// Delete removes the subject and clears SubjectId on its paragraphs.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return invalid("subject", "Id", "required")
	}
	return r.level.s.cascade(ctx, LevelSubject, id)
}

// IncrementCounter adds delta to a counter field store-side.
func (r *SubjectRepository) IncrementCounter(ctx context.Context, id, field string, delta int64) error {
	return r.level.increment(ctx, id, field, delta)
}

// SetCounter overwrites a counter or average with one atomic set.
func (r *SubjectRepository) SetCounter(ctx context.Context, id, field string, value float64) error {
	return r.level.setCounter(ctx, id, field, value)
}

func (r *SubjectRepository) resolve(ctx context.Context, id string) (*Subject, error) {
	s, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load subject %s: %w", id, err)
	}
	if s == nil {
		return nil, parentMissing("paragraph", "SubjectId", id)
	}
	return s, nil
}
