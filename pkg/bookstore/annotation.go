// ABOUTME: Annotation repositories for volumes, chapters and paragraphs
// ABOUTME: Numbered per annotated entity; deleting one removes only itself

package bookstore

import (
	"context"

	"github.com/nainya/readerstore/pkg/docstore"
)

// VolumeAnnotationRepository stores volume annotations.
type VolumeAnnotationRepository struct {
	level level[VolumeAnnotation, *VolumeAnnotation]
}

// GetByID returns the volume annotation with id, or nil when there is none.
func (r *VolumeAnnotationRepository) GetByID(ctx context.Context, id string) (*VolumeAnnotation, error) {
	return r.level.get(ctx, id)
}

// GetByParentAndNumber returns the volume annotation numbered n under its direct parent.
func (r *VolumeAnnotationRepository) GetByParentAndNumber(ctx context.Context, volumeID string, number int) (*VolumeAnnotation, error) {
	return r.level.getBy(ctx, ParentNumberIndex, volumeID, number)
}

// GetByPathAndNumber looks the volume annotation up by its ancestor path.
func (r *VolumeAnnotationRepository) GetByPathAndNumber(ctx context.Context, bookID string, volumeNumber, number int) (*VolumeAnnotation, error) {
	return r.level.getBy(ctx, PathNumberIndex, bookID, volumeNumber, number)
}

// FindByParent lists the volume annotations of one parent.
func (r *VolumeAnnotationRepository) FindByParent(ctx context.Context, volumeID string, opts FindOptions) ([]*VolumeAnnotation, error) {
	return r.level.find(ctx, opts.query(VolumeIndex, docstore.Key{volumeID}))
}

// FindByPath lists the volume annotations on one ancestor path.
func (r *VolumeAnnotationRepository) FindByPath(ctx context.Context, bookID string, volumeNumber int, opts FindOptions) ([]*VolumeAnnotation, error) {
	return r.level.find(ctx, opts.query(BookIndex, docstore.Key{bookID}, pathFilter(volumeNumber)...))
}

// CountByParent counts the volume annotations of one parent.
func (r *VolumeAnnotationRepository) CountByParent(ctx context.Context, volumeID string) (int64, error) {
	return r.level.count(ctx, docstore.Query{Index: VolumeIndex, Key: docstore.Key{volumeID}})
}

// CountByPath counts the volume annotations on one ancestor path.
func (r *VolumeAnnotationRepository) CountByPath(ctx context.Context, bookID string, volumeNumber int) (int64, error) {
	return r.level.count(ctx, docstore.Query{Index: BookIndex, Key: docstore.Key{bookID}, Filter: pathFilter(volumeNumber)})
}

// CountByParents counts volume annotations per parent id, zero for parents without any.
func (r *VolumeAnnotationRepository) CountByParents(ctx context.Context, volumeIDs []string) (map[string]int64, error) {
	return r.level.countBy(ctx, "VolumeId", volumeIDs)
}

// Create stores a new volume annotation under its parent.
func (r *VolumeAnnotationRepository) Create(ctx context.Context, a *VolumeAnnotation) (*VolumeAnnotation, error) {
	if err := r.level.validate(a); err != nil {
		return nil, err
	}
	vol, err := r.level.s.Volumes.parent(ctx, "volume annotation", a.VolumeId)
	if err != nil {
		return nil, err
	}
	a.BookId, a.VolumeNumber = vol.BookId, vol.Number
	return r.level.create(ctx, a, vol.Id, a.Number, Coordinate{
		ParentIndex: ParentNumberIndex,
		ParentKey:   docstore.Key{vol.Id, a.Number},
		PathIndex:   PathNumberIndex,
		PathKey:     docstore.Key{vol.BookId, vol.Number, a.Number},
	})
}

// Update writes the mutable fields of updated over existing.
func (r *VolumeAnnotationRepository) Update(ctx context.Context, existing, updated *VolumeAnnotation) (*VolumeAnnotation, error) {
	return r.level.update(ctx, existing, updated)
}

// Delete removes the volume annotation.
func (r *VolumeAnnotationRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return invalid("volume annotation", "Id", "required")
	}
	return r.level.s.cascade(ctx, LevelVolumeAnnotation, id)
}

// IncrementCounter adds delta to a counter field store-side.
func (r *VolumeAnnotationRepository) IncrementCounter(ctx context.Context, id, field string, delta int64) error {
	return r.level.increment(ctx, id, field, delta)
}

// SetCounter overwrites a counter or average with one atomic set.
func (r *VolumeAnnotationRepository) SetCounter(ctx context.Context, id, field string, value float64) error {
	return r.level.setCounter(ctx, id, field, value)
}

// ChapterAnnotationRepository stores chapter annotations.
type ChapterAnnotationRepository struct {
	level level[ChapterAnnotation, *ChapterAnnotation]
}

// GetByID returns the chapter annotation with id, or nil when there is none.
func (r *ChapterAnnotationRepository) GetByID(ctx context.Context, id string) (*ChapterAnnotation, error) {
	return r.level.get(ctx, id)
}

// GetByParentAndNumber returns the chapter annotation numbered n under its direct parent.
func (r *ChapterAnnotationRepository) GetByParentAndNumber(ctx context.Context, chapterID string, number int) (*ChapterAnnotation, error) {
	return r.level.getBy(ctx, ParentNumberIndex, chapterID, number)
}

// GetByPathAndNumber looks the chapter annotation up by its ancestor path.
func (r *ChapterAnnotationRepository) GetByPathAndNumber(ctx context.Context, bookID string, volumeNumber, chapterNumber, number int) (*ChapterAnnotation, error) {
	return r.level.getBy(ctx, PathNumberIndex, bookID, volumeNumber, chapterNumber, number)
}

// FindByParent lists the chapter annotations of one parent.
func (r *ChapterAnnotationRepository) FindByParent(ctx context.Context, chapterID string, opts FindOptions) ([]*ChapterAnnotation, error) {
	return r.level.find(ctx, opts.query(ChapterIndex, docstore.Key{chapterID}))
}

// FindByPath lists the chapter annotations on one ancestor path.
func (r *ChapterAnnotationRepository) FindByPath(ctx context.Context, bookID string, volumeNumber, chapterNumber int, opts FindOptions) ([]*ChapterAnnotation, error) {
	return r.level.find(ctx, opts.query(BookIndex, docstore.Key{bookID}, pathFilter(volumeNumber, chapterNumber)...))
}

// CountByParent counts the chapter annotations of one parent.
func (r *ChapterAnnotationRepository) CountByParent(ctx context.Context, chapterID string) (int64, error) {
	return r.level.count(ctx, docstore.Query{Index: ChapterIndex, Key: docstore.Key{chapterID}})
}

// CountByPath counts the chapter annotations on one ancestor path.
func (r *ChapterAnnotationRepository) CountByPath(ctx context.Context, bookID string, volumeNumber, chapterNumber int) (int64, error) {
	return r.level.count(ctx, docstore.Query{
		Index:  BookIndex,
		Key:    docstore.Key{bookID},
		Filter: pathFilter(volumeNumber, chapterNumber),
	})
}

// CountByParents counts chapter annotations per parent id, zero for parents without any.
func (r *ChapterAnnotationRepository) CountByParents(ctx context.Context, chapterIDs []string) (map[string]int64, error) {
	return r.level.countBy(ctx, "ChapterId", chapterIDs)
}

// Create stores a new chapter annotation under its parent.
func (r *ChapterAnnotationRepository) Create(ctx context.Context, a *ChapterAnnotation) (*ChapterAnnotation, error) {
	if err := r.level.validate(a); err != nil {
		return nil, err
	}
	ch, err := r.level.s.Chapters.parent(ctx, "chapter annotation", a.ChapterId)
	if err != nil {
		return nil, err
	}
	a.BookId, a.VolumeId = ch.BookId, ch.VolumeId
	a.VolumeNumber, a.ChapterNumber = ch.VolumeNumber, ch.Number
	return r.level.create(ctx, a, ch.Id, a.Number, Coordinate{
		ParentIndex: ParentNumberIndex,
		ParentKey:   docstore.Key{ch.Id, a.Number},
		PathIndex:   PathNumberIndex,
		PathKey:     docstore.Key{ch.BookId, ch.VolumeNumber, ch.Number, a.Number},
	})
}

// Update writes the mutable fields of updated over existing.
func (r *ChapterAnnotationRepository) Update(ctx context.Context, existing, updated *ChapterAnnotation) (*ChapterAnnotation, error) {
	return r.level.update(ctx, existing, updated)
}

// Delete removes the chapter annotation.
func (r *ChapterAnnotationRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return invalid("chapter annotation", "Id", "required")
	}
	return r.level.s.cascade(ctx, LevelChapterAnnotation, id)
}

// IncrementCounter adds delta to a counter field store-side.
func (r *ChapterAnnotationRepository) IncrementCounter(ctx context.Context, id, field string, delta int64) error {
	return r.level.increment(ctx, id, field, delta)
}

// SetCounter overwrites a counter or average with one atomic set.
func (r *ChapterAnnotationRepository) SetCounter(ctx context.Context, id, field string, value float64) error {
	return r.level.setCounter(ctx, id, field, value)
}

// ParagraphAnnotationRepository stores paragraph annotations.
type ParagraphAnnotationRepository struct {
	level level[ParagraphAnnotation, *ParagraphAnnotation]
}

// GetByID returns the paragraph annotation with id, or nil when there is none.
func (r *ParagraphAnnotationRepository) GetByID(ctx context.Context, id string) (*ParagraphAnnotation, error) {
	return r.level.get(ctx, id)
}

// GetByParentAndNumber returns the paragraph annotation numbered n under its direct parent.
func (r *ParagraphAnnotationRepository) GetByParentAndNumber(ctx context.Context, paragraphID string, number int) (*ParagraphAnnotation, error) {
	return r.level.getBy(ctx, ParentNumberIndex, paragraphID, number)
}

// GetByPathAndNumber looks the paragraph annotation up by its ancestor path.
func (r *ParagraphAnnotationRepository) GetByPathAndNumber(ctx context.Context, bookID string, volumeNumber, chapterNumber, paragraphNumber, number int) (*ParagraphAnnotation, error) {
	return r.level.getBy(ctx, PathNumberIndex, bookID, volumeNumber, chapterNumber, paragraphNumber, number)
}

// FindByParent lists the paragraph annotations of one parent.
func (r *ParagraphAnnotationRepository) FindByParent(ctx context.Context, paragraphID string, opts FindOptions) ([]*ParagraphAnnotation, error) {
	return r.level.find(ctx, opts.query(ParagraphIndex, docstore.Key{paragraphID}))
}

// FindByPath lists the paragraph annotations on one ancestor path.
func (r *ParagraphAnnotationRepository) FindByPath(ctx context.Context, bookID string, volumeNumber, chapterNumber, paragraphNumber int, opts FindOptions) ([]*ParagraphAnnotation, error) {
	return r.level.find(ctx, opts.query(BookIndex, docstore.Key{bookID},
		pathFilter(volumeNumber, chapterNumber, paragraphNumber)...))
}

// CountByParent counts the paragraph annotations of one parent.
func (r *ParagraphAnnotationRepository) CountByParent(ctx context.Context, paragraphID string) (int64, error) {
	return r.level.count(ctx, docstore.Query{Index: ParagraphIndex, Key: docstore.Key{paragraphID}})
}

// CountByPath counts the paragraph annotations on one ancestor path.
func (r *ParagraphAnnotationRepository) CountByPath(ctx context.Context, bookID string, volumeNumber, chapterNumber, paragraphNumber int) (int64, error) {
	return r.level.count(ctx, docstore.Query{
		Index:  BookIndex,
		Key:    docstore.Key{bookID},
		Filter: pathFilter(volumeNumber, chapterNumber, paragraphNumber),
	})
}

// CountByParents counts paragraph annotations per parent id, zero for parents without any.
func (r *ParagraphAnnotationRepository) CountByParents(ctx context.Context, paragraphIDs []string) (map[string]int64, error) {
	return r.level.countBy(ctx, "ParagraphId", paragraphIDs)
}

// Create stores a new paragraph annotation under its parent.
func (r *ParagraphAnnotationRepository) Create(ctx context.Context, a *ParagraphAnnotation) (*ParagraphAnnotation, error) {
	if err := r.level.validate(a); err != nil {
		return nil, err
	}
	p, err := r.level.s.Paragraphs.parent(ctx, "paragraph annotation", a.ParagraphId)
	if err != nil {
		return nil, err
	}
	a.BookId, a.VolumeId, a.ChapterId = p.BookId, p.VolumeId, p.ChapterId
	a.VolumeNumber, a.ChapterNumber, a.ParagraphNumber = p.VolumeNumber, p.ChapterNumber, p.Number
	return r.level.create(ctx, a, p.Id, a.Number, Coordinate{
		ParentIndex: ParentNumberIndex,
		ParentKey:   docstore.Key{p.Id, a.Number},
		PathIndex:   PathNumberIndex,
		PathKey:     docstore.Key{p.BookId, p.VolumeNumber, p.ChapterNumber, p.Number, a.Number},
	})
}

// Update writes the mutable fields of updated over existing.
func (r *ParagraphAnnotationRepository) Update(ctx context.Context, existing, updated *ParagraphAnnotation) (*ParagraphAnnotation, error) {
	return r.level.update(ctx, existing, updated)
}

// Delete removes the paragraph annotation.
func (r *ParagraphAnnotationRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return invalid("paragraph annotation", "Id", "required")
	}
	return r.level.s.cascade(ctx, LevelParagraphAnnotation, id)
}

// IncrementCounter adds delta to a counter field store-side.
func (r *ParagraphAnnotationRepository) IncrementCounter(ctx context.Context, id, field string, delta int64) error {
	return r.level.increment(ctx, id, field, delta)
}

// SetCounter overwrites a counter or average with one atomic set.
func (r *ParagraphAnnotationRepository) SetCounter(ctx context.Context, id, field string, value float64) error {
	return r.level.setCounter(ctx, id, field, value)
}
