// ABOUTME: Cascade delete plans per hierarchy level
// ABOUTME: Own document first, then match-based steps top-down, fail fast

package bookstore

import (
	"context"
	"fmt"

	"github.com/nainya/readerstore/pkg/docstore"
)

// Level names an entity kind in cascade plans and journal entries.
type Level string

const (
	LevelBook                Level = "book"
	LevelVolume              Level = "volume"
	LevelSubject             Level = "subject"
	LevelChapter             Level = "chapter"
	LevelParagraph           Level = "paragraph"
	LevelVolumeAnnotation    Level = "volume_annotation"
	LevelChapterAnnotation   Level = "chapter_annotation"
	LevelParagraphAnnotation Level = "paragraph_annotation"
)

// Step is one match-based action of a cascade. Detach clears Field on the
// matched rows instead of deleting them.
type Step struct {
	Table  string
	Index  string
	Detach string
}

// Plan is the own table of a level and the steps run after its deletion.
type Plan struct {
	Table string
	Steps []Step
}

func deleteBy(index string, tables ...string) []Step {
	steps := make([]Step, len(tables))
	for i, t := range tables {
		steps[i] = Step{Table: t, Index: index}
	}
	return steps
}

var plans = map[Level]Plan{
	LevelBook: {Table: BooksTable, Steps: deleteBy(BookIndex,
		VolumesTable, VolumeAnnotationsTable, SubjectsTable, ChaptersTable,
		ChapterAnnotationsTable, ParagraphsTable, ParagraphAnnotationsTable)},
	LevelVolume: {Table: VolumesTable, Steps: deleteBy(VolumeIndex,
		VolumeAnnotationsTable, SubjectsTable, ChaptersTable,
		ChapterAnnotationsTable, ParagraphsTable, ParagraphAnnotationsTable)},
	LevelSubject: {Table: SubjectsTable, Steps: []Step{
		{Table: ParagraphsTable, Index: SubjectIndex, Detach: "SubjectId"},
	}},
	LevelChapter: {Table: ChaptersTable, Steps: deleteBy(ChapterIndex,
		ChapterAnnotationsTable, ParagraphsTable, ParagraphAnnotationsTable)},
	LevelParagraph: {Table: ParagraphsTable, Steps: deleteBy(ParagraphIndex,
		ParagraphAnnotationsTable)},
	LevelVolumeAnnotation:    {Table: VolumeAnnotationsTable},
	LevelChapterAnnotation:   {Table: ChapterAnnotationsTable},
	LevelParagraphAnnotation: {Table: ParagraphAnnotationsTable},
}

// PlanFor returns the cascade plan of a level.
func PlanFor(l Level) (Plan, bool) {
	p, ok := plans[l]
	return p, ok
}

const detachBatch = 100

// cascade deletes id at level l and everything the plan reaches. With the
// journal on, a PendingCascades entry covers the window between the own
// delete and the last step.
func (s *Store) cascade(ctx context.Context, l Level, id string) error {
	plan, ok := plans[l]
	if !ok {
		return invalid(string(l), "", "unknown level")
	}
	var entry *PendingCascade
	if s.journal && len(plan.Steps) > 0 {
		var err error
		if entry, err = s.begin(ctx, l, id); err != nil {
			return err
		}
	}
	if err := s.run(ctx, l, id, plan); err != nil {
		if entry != nil {
			s.fail(ctx, entry, err)
		}
		return err
	}
	if entry != nil {
		return s.finish(ctx, entry)
	}
	return nil
}

func (s *Store) run(ctx context.Context, l Level, id string, plan Plan) error {
	if err := s.client.Delete(ctx, plan.Table, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", l, id, err)
	}
	for _, step := range plan.Steps {
		n, err := s.step(ctx, step, id)
		if err != nil {
			return fmt.Errorf("cascade %s %s: %s by %s: %w", l, id, step.Table, step.Index, err)
		}
		s.log.Debug().
			Str("level", string(l)).
			Str("id", id).
			Str("table", step.Table).
			Bool("detach", step.Detach != "").
			Int64("rows", n).
			Msg("cascade step")
	}
	return nil
}

func (s *Store) step(ctx context.Context, step Step, id string) (int64, error) {
	if step.Detach == "" {
		return s.client.DeleteByIndex(ctx, step.Table, step.Index, docstore.Key{id})
	}
	var total int64
	for {
		docs, err := s.client.Scan(ctx, step.Table, docstore.Query{
			Index: step.Index,
			Key:   docstore.Key{id},
			Limit: detachBatch,
		})
		if err != nil {
			return total, err
		}
		for _, doc := range docs {
			if err := s.client.Update(ctx, step.Table, docstore.IDOf(doc), docstore.Set(step.Detach, nil)); err != nil {
				return total, err
			}
			total++
		}
		if len(docs) < detachBatch {
			return total, nil
		}
	}
}
