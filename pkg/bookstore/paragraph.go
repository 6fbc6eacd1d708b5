// ABOUTME: Paragraph repository; path is (BookId, VolumeNumber, ChapterNumber, Number)
// ABOUTME: SubjectId, when set, must name a subject of the same volume

package bookstore

import (
	"context"
	"fmt"

	"github.com/nainya/readerstore/pkg/docstore"
)

// ParagraphRepository stores paragraphs.
type ParagraphRepository struct {
	level level[Paragraph, *Paragraph]
}

// GetByID returns the paragraph with id, or nil when there is none.
func (r *ParagraphRepository) GetByID(ctx context.Context, id string) (*Paragraph, error) {
	return r.level.get(ctx, id)
}

// GetByParentAndNumber returns the paragraph numbered n under its direct parent.
func (r *ParagraphRepository) GetByParentAndNumber(ctx context.Context, chapterID string, number int) (*Paragraph, error) {
	return r.level.getBy(ctx, ParentNumberIndex, chapterID, number)
}

// GetByPathAndNumber looks the paragraph up by its ancestor path.
func (r *ParagraphRepository) GetByPathAndNumber(ctx context.Context, bookID string, volumeNumber, chapterNumber, number int) (*Paragraph, error) {
	return r.level.getBy(ctx, PathNumberIndex, bookID, volumeNumber, chapterNumber, number)
}

// FindByParent lists the paragraphs of one parent.
func (r *ParagraphRepository) FindByParent(ctx context.Context, chapterID string, opts FindOptions) ([]*Paragraph, error) {
	return r.level.find(ctx, opts.query(ChapterIndex, docstore.Key{chapterID}))
}

// FindByPath lists the paragraphs on one ancestor path.
func (r *ParagraphRepository) FindByPath(ctx context.Context, bookID string, volumeNumber, chapterNumber int, opts FindOptions) ([]*Paragraph, error) {
	return r.level.find(ctx, opts.query(BookIndex, docstore.Key{bookID}, pathFilter(volumeNumber, chapterNumber)...))
}

// FindBySubject lists the paragraphs filed under a subject.
func (r *ParagraphRepository) FindBySubject(ctx context.Context, subjectID string, opts FindOptions) ([]*Paragraph, error) {
	return r.level.find(ctx, opts.query(SubjectIndex, docstore.Key{subjectID}))
}

// CountByParent counts the paragraphs of one parent.
func (r *ParagraphRepository) CountByParent(ctx context.Context, chapterID string) (int64, error) {
	return r.level.count(ctx, docstore.Query{Index: ChapterIndex, Key: docstore.Key{chapterID}})
}

// CountByPath counts the paragraphs on one ancestor path.
func (r *ParagraphRepository) CountByPath(ctx context.Context, bookID string, volumeNumber, chapterNumber int) (int64, error) {
	return r.level.count(ctx, docstore.Query{
		Index:  BookIndex,
		Key:    docstore.Key{bookID},
		Filter: pathFilter(volumeNumber, chapterNumber),
	})
}

// CountBySubject counts the paragraphs filed under a subject.
func (r *ParagraphRepository) CountBySubject(ctx context.Context, subjectID string) (int64, error) {
	return r.level.count(ctx, docstore.Query{Index: SubjectIndex, Key: docstore.Key{subjectID}})
}

// CountByParents counts paragraphs per parent id, zero for parents without any.
func (r *ParagraphRepository) CountByParents(ctx context.Context, chapterIDs []string) (map[string]int64, error) {
	return r.level.countBy(ctx, "ChapterId", chapterIDs)
}

// Create stores a new paragraph under p.ChapterId with id ChapterId-Number.
func (r *ParagraphRepository) Create(ctx context.Context, p *Paragraph) (*Paragraph, error) {
	if err := r.level.validate(p); err != nil {
		return nil, err
	}
	ch, err := r.level.s.Chapters.parent(ctx, "paragraph", p.ChapterId)
	if err != nil {
		return nil, err
	}
	p.BookId, p.VolumeId = ch.BookId, ch.VolumeId
	p.VolumeNumber, p.ChapterNumber = ch.VolumeNumber, ch.Number
	if err := r.checkSubject(ctx, p.SubjectId, ch.VolumeId); err != nil {
		return nil, err
	}
	return r.level.create(ctx, p, ch.Id, p.Number, Coordinate{
		ParentIndex: ParentNumberIndex,
		ParentKey:   docstore.Key{ch.Id, p.Number},
		PathIndex:   PathNumberIndex,
		PathKey:     docstore.Key{ch.BookId, ch.VolumeNumber, ch.Number, p.Number},
	})
}

// Update writes Text and SubjectId. A nil SubjectId detaches the paragraph.
func (r *ParagraphRepository) Update(ctx context.Context, existing, updated *Paragraph) (*Paragraph, error) {
	if existing != nil && updated != nil {
		if err := r.checkSubject(ctx, updated.SubjectId, existing.VolumeId); err != nil {
			return nil, err
		}
	}
	return r.level.update(ctx, existing, updated)
}

// Delete removes the paragraph and its annotations.
func (r *ParagraphRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return invalid("paragraph", "Id", "required")
	}
	return r.level.s.cascade(ctx, LevelParagraph, id)
}

// IncrementCounter adds delta to a counter field store-side.
func (r *ParagraphRepository) IncrementCounter(ctx context.Context, id, field string, delta int64) error {
	return r.level.increment(ctx, id, field, delta)
}

// SetCounter overwrites a counter or average with one atomic set.
func (r *ParagraphRepository) SetCounter(ctx context.Context, id, field string, value float64) error {
	return r.level.setCounter(ctx, id, field, value)
}

func (r *ParagraphRepository) checkSubject(ctx context.Context, subjectID *string, volumeID string) error {
	if subjectID == nil {
		return nil
	}
	s, err := r.level.s.Subjects.resolve(ctx, *subjectID)
	if err != nil {
		return err
	}
	if s.VolumeId != volumeID {
		return invalid("paragraph", "SubjectId", fmt.Sprintf("subject %s belongs to volume %s", s.Id, s.VolumeId))
	}
	return nil
}

func (r *ParagraphRepository) parent(ctx context.Context, entity, id string) (*Paragraph, error) {
	if id == "" {
		return nil, invalid(entity, "ParagraphId", "required")
	}
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load paragraph %s: %w", id, err)
	}
	if p == nil {
		return nil, parentMissing(entity, "ParagraphId", id)
	}
	return p, nil
}
