package bookstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/nainya/readerstore/pkg/docstore"
	"github.com/nainya/readerstore/pkg/docstore/memstore"
)

func TestDeriveID(t *testing.T) {
	assert.Equal(t, "b-3", DeriveID("b", 3))
	assert.Equal(t, DeriveID("b-1-2", 7), DeriveID("b-1-2", 7))
	assert.Equal(t, "b-1-2-7", DeriveID(DeriveID(DeriveID("b", 1), 2), 7))
	assert.NotEqual(t, NewRootID(), NewRootID())
}

func TestCreateDerivesIdentifiersAndAncestors(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store) {
		tr := seed(t, s, "b")

		assert.Equal(t, "b-1", tr.volume.Id)
		assert.Equal(t, "b-1-1", tr.chapter.Id)
		assert.Equal(t, "b-1-1-2", tr.para2.Id)
		assert.Equal(t, "b-1-1-1-1", tr.paraNote.Id)

		assert.Equal(t, "b", tr.para2.BookId)
		assert.Equal(t, "b-1", tr.para2.VolumeId)
		assert.Equal(t, 1, tr.para2.VolumeNumber)
		assert.Equal(t, 1, tr.para2.ChapterNumber)
		assert.Equal(t, 1, tr.paraNote.ParagraphNumber)
		assert.True(t, tr.chapter.CreatedDate.Equal(epoch))
	})
}

func TestAncestorPathComesFromParent(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	tr := seed(t, s, "b")

	ch, err := s.Chapters.Create(ctx, &Chapter{
		BookId:       "forged",
		VolumeId:     tr.volume.Id,
		VolumeNumber: 42,
		Number:       2,
	})
	require.NoError(t, err)
	assert.Equal(t, "b", ch.BookId)
	assert.Equal(t, 1, ch.VolumeNumber)
}

func TestLookups(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		tr := seed(t, s, "b")

		got, err := s.Paragraphs.GetByParentAndNumber(ctx, tr.chapter.Id, 2)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, tr.para2.Id, got.Id)

		got, err = s.Paragraphs.GetByPathAndNumber(ctx, "b", 1, 1, 2)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, tr.para2.Id, got.Id)

		missing, err := s.Paragraphs.GetByPathAndNumber(ctx, "b", 1, 1, 9)
		require.NoError(t, err)
		assert.Nil(t, missing)

		book, err := s.Books.GetByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, book)

		paras, err := s.Paragraphs.FindByParent(ctx, tr.chapter.Id, FindOptions{Descending: true})
		require.NoError(t, err)
		require.Len(t, paras, 2)
		assert.Equal(t, 2, paras[0].Number)

		paras, err = s.Paragraphs.FindByPath(ctx, "b", 1, 1, FindOptions{Limit: 1, Skip: 1})
		require.NoError(t, err)
		require.Len(t, paras, 1)
		assert.Equal(t, tr.para2.Id, paras[0].Id)

		paras, err = s.Paragraphs.FindBySubject(ctx, tr.subject.Id, FindOptions{})
		require.NoError(t, err)
		require.Len(t, paras, 1)
		assert.Equal(t, tr.para1.Id, paras[0].Id)

		n, err := s.Paragraphs.CountByPath(ctx, "b", 1, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		counts, err := s.Paragraphs.CountByParents(ctx, []string{tr.chapter.Id, "b-9-9"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{tr.chapter.Id: 2, "b-9-9": 0}, counts)

		notes, err := s.ParagraphAnnotations.FindByPath(ctx, "b", 1, 1, 1, FindOptions{})
		require.NoError(t, err)
		assert.Len(t, notes, 1)
	})
}

func TestDuplicateOrdinalUnderSameParent(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		tr := seed(t, s, "b")

		_, err := s.Chapters.Create(ctx, &Chapter{VolumeId: tr.volume.Id, Number: 1, Title: "Other"})
		require.ErrorIs(t, err, ErrDuplicateOrdinal)

		var dup *DuplicateOrdinalError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, ChaptersTable, dup.Table)
		assert.Equal(t, ParentNumberIndex, dup.Index)
		assert.Equal(t, tr.chapter.Id, dup.ConflictingID)

		assert.EqualValues(t, 1, rows(t, s.Client(), ChaptersTable))
	})
}

func TestDuplicateOrdinalOnAncestorPath(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	tr := seed(t, s, "b")

	// A chapter that claims path (b, 1, 2) under a different volume id.
	stray := Chapter{Id: "stray", BookId: "b", VolumeId: "elsewhere", VolumeNumber: 1, Number: 2}
	_, err := docstore.UpsertAs(ctx, s.Client(), ChaptersTable, stray.Id, &stray)
	require.NoError(t, err)

	_, err = s.Chapters.Create(ctx, &Chapter{VolumeId: tr.volume.Id, Number: 2})
	require.ErrorIs(t, err, ErrDuplicateOrdinal)

	var dup *DuplicateOrdinalError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, PathNumberIndex, dup.Index)
	assert.Equal(t, "stray", dup.ConflictingID)
}

func TestRepeatedCreateIsIdempotent(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		_, err := s.Books.Create(ctx, &Book{Id: "b", Title: "T"})
		require.NoError(t, err)

		first, err := s.Volumes.Create(ctx, &Volume{BookId: "b", Number: 1, Title: "One"})
		require.NoError(t, err)
		again, err := s.Volumes.Create(ctx, &Volume{BookId: "b", Number: 1, Title: "One"})
		require.NoError(t, err)
		assert.Equal(t, first, again)
		assert.EqualValues(t, 1, rows(t, s.Client(), VolumesTable))

		_, err = s.Volumes.Create(ctx, &Volume{BookId: "b", Number: 1, Title: "Changed"})
		assert.ErrorIs(t, err, ErrDuplicateOrdinal)
	})
}

func TestRepeatedCreateAfterEngagementIsIdempotent(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		_, err := s.Books.Create(ctx, &Book{Id: "b", Title: "T"})
		require.NoError(t, err)

		first, err := s.Volumes.Create(ctx, &Volume{BookId: "b", Number: 1, Title: "One"})
		require.NoError(t, err)
		require.NoError(t, s.Volumes.IncrementCounter(ctx, first.Id, "ViewsCount", 1))

		again, err := s.Volumes.Create(ctx, &Volume{BookId: "b", Number: 1, Title: "One"})
		require.NoError(t, err)
		assert.Equal(t, first.Id, again.Id)
		assert.EqualValues(t, 1, again.ViewsCount)
		assert.EqualValues(t, 1, rows(t, s.Client(), VolumesTable))
	})
}

func TestDuplicateOrdinalOnAnnotationPath(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	tr := seed(t, s, "b")

	// An annotation that claims path (b, 1, 1, 2, 1) under a different paragraph id.
	stray := ParagraphAnnotation{
		Id:              "stray",
		BookId:          "b",
		ParagraphId:     "elsewhere",
		VolumeNumber:    tr.para2.VolumeNumber,
		ChapterNumber:   tr.para2.ChapterNumber,
		ParagraphNumber: tr.para2.Number,
		Number:          1,
		Note:            Note{AuthorId: "u", Text: "x"},
	}
	_, err := docstore.UpsertAs(ctx, s.Client(), ParagraphAnnotationsTable, stray.Id, &stray)
	require.NoError(t, err)

	_, err = s.ParagraphAnnotations.Create(ctx, &ParagraphAnnotation{
		ParagraphId: tr.para2.Id,
		Number:      1,
		Note:        Note{AuthorId: "u1", Text: "note"},
	})
	require.ErrorIs(t, err, ErrDuplicateOrdinal)

	var dup *DuplicateOrdinalError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, ParagraphAnnotationsTable, dup.Table)
	assert.Equal(t, PathNumberIndex, dup.Index)
	assert.Equal(t, "stray", dup.ConflictingID)
}

func TestCreateValidation(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	tr := seed(t, s, "b")

	_, err := s.Volumes.Create(ctx, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.Volumes.Create(ctx, &Volume{BookId: "b", Number: 0})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Number", verr.Field)

	_, err = s.Volumes.Create(ctx, &Volume{BookId: "ghost", Number: 1})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrParentNotFound)

	_, err = s.Books.Create(ctx, &Book{Title: ""})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.ParagraphAnnotations.Create(ctx, &ParagraphAnnotation{ParagraphId: tr.para1.Id, Number: 2})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "AuthorId", verr.Field)

	// Subject of another volume.
	other, err := s.Volumes.Create(ctx, &Volume{BookId: "b", Number: 2})
	require.NoError(t, err)
	sub, err := s.Subjects.Create(ctx, &Subject{VolumeId: other.Id, Number: 1, Title: "Elsewhere"})
	require.NoError(t, err)
	_, err = s.Paragraphs.Create(ctx, &Paragraph{ChapterId: tr.chapter.Id, Number: 3, Text: "x", SubjectId: &sub.Id})
	assert.ErrorIs(t, err, ErrValidation)

	missing := "b-1-9"
	_, err = s.Paragraphs.Create(ctx, &Paragraph{ChapterId: tr.chapter.Id, Number: 3, Text: "x", SubjectId: &missing})
	assert.ErrorIs(t, err, ErrParentNotFound)
}

func TestUpdateKeepsIdentityAndCounters(t *testing.T) {
	now := epoch
	s := newMemStore(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	tr := seed(t, s, "b")
	require.NoError(t, s.Chapters.IncrementCounter(ctx, tr.chapter.Id, "LikesCount", 3))

	now = epoch.Add(time.Hour)
	got, err := s.Chapters.Update(ctx, tr.chapter, &Chapter{VolumeId: "x", Number: 9, Title: "Renamed", Engagement: Engagement{LikesCount: 99}})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, tr.chapter.Id, got.Id)
	assert.Equal(t, tr.volume.Id, got.VolumeId)
	assert.Equal(t, 1, got.Number)
	assert.Equal(t, "Renamed", got.Title)
	assert.EqualValues(t, 3, got.LikesCount)
	assert.True(t, got.CreatedDate.Equal(epoch))
	assert.True(t, got.ModifiedDate.Equal(now))

	_, err = s.Chapters.Update(ctx, nil, &Chapter{})
	assert.ErrorIs(t, err, ErrValidation)

	// Detach through update.
	p, err := s.Paragraphs.Update(ctx, tr.para1, &Paragraph{Text: "rewritten"})
	require.NoError(t, err)
	assert.Nil(t, p.SubjectId)
	assert.Equal(t, "rewritten", p.Text)
}

func TestCounters(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	tr := seed(t, s, "b")

	require.NoError(t, s.Volumes.IncrementCounter(ctx, tr.volume.Id, "ChaptersCount", 2))
	require.NoError(t, s.Volumes.IncrementCounter(ctx, tr.volume.Id, "ChaptersCount", -1))
	require.NoError(t, s.Volumes.SetCounter(ctx, tr.volume.Id, "RatingsAverageValue", 4.5))
	require.NoError(t, s.Volumes.SetCounter(ctx, tr.volume.Id, "RatingsCount", 12))

	v, err := s.Volumes.GetByID(ctx, tr.volume.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v.ChaptersCount)
	assert.InDelta(t, 4.5, v.RatingsAverageValue, 1e-9)
	assert.EqualValues(t, 12, v.RatingsCount)

	err = s.Volumes.IncrementCounter(ctx, tr.volume.Id, "Title", 1)
	assert.ErrorIs(t, err, ErrUnknownCounter)
	assert.ErrorIs(t, err, ErrValidation)

	err = s.Subjects.IncrementCounter(ctx, tr.subject.Id, "LikesCount", 1)
	assert.ErrorIs(t, err, ErrUnknownCounter)

	err = s.Volumes.SetCounter(ctx, tr.volume.Id, "LikesCount", 1.5)
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, s.ParagraphAnnotations.IncrementCounter(ctx, tr.paraNote.Id, "LikesCount", 1))

	// Counters on a missing entity are a no-op.
	require.NoError(t, s.Volumes.IncrementCounter(ctx, "b-9", "LikesCount", 1))
	missing, err := s.Volumes.GetByID(ctx, "b-9")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestConcurrentIncrementsConverge(t *testing.T) {
	const n = 50
	eachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		tr := seed(t, s, "b")

		var g errgroup.Group
		for range n {
			g.Go(func() error {
				return s.Paragraphs.IncrementCounter(ctx, tr.para1.Id, "ViewsCount", 1)
			})
		}
		require.NoError(t, g.Wait())

		p, err := s.Paragraphs.GetByID(ctx, tr.para1.Id)
		require.NoError(t, err)
		assert.EqualValues(t, n, p.ViewsCount)
	})
}

func TestConcurrentCreateIsLastWriterWins(t *testing.T) {
	mem := memstore.New(Schema())
	setup := New(mem)
	ctx := context.Background()
	_, err := setup.Books.Create(ctx, &Book{Id: "b", Title: "T"})
	require.NoError(t, err)
	_, err = setup.Volumes.Create(ctx, &Volume{BookId: "b", Number: 1})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	s := New(&gatedClient{Client: mem, table: ChaptersTable, wg: &wg})

	var g errgroup.Group
	for _, title := range []string{"A", "B"} {
		g.Go(func() error {
			_, err := s.Chapters.Create(ctx, &Chapter{VolumeId: "b-1", Number: 1, Title: title})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, rows(t, mem, ChaptersTable))
	ch, err := s.Chapters.GetByID(ctx, "b-1-1")
	require.NoError(t, err)
	assert.Contains(t, []string{"A", "B"}, ch.Title)
}

var hierarchyTables = []string{
	BooksTable, VolumesTable, SubjectsTable, ChaptersTable, ParagraphsTable,
	VolumeAnnotationsTable, ChapterAnnotationsTable, ParagraphAnnotationsTable,
}

func TestDeleteBookRemovesSubtree(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		seed(t, s, "b")
		seed(t, s, "c")

		before := map[string]int64{}
		for _, table := range hierarchyTables {
			before[table] = rows(t, s.Client(), table)
		}

		require.NoError(t, s.Books.Delete(ctx, "b"))

		for _, table := range hierarchyTables {
			assert.Equal(t, before[table]/2, rows(t, s.Client(), table), table)
		}
		assert.Zero(t, rows(t, s.Client(), PendingCascadesTable))

		// Re-running is harmless.
		require.NoError(t, s.Books.Delete(ctx, "b"))
	})
}

func TestDeleteLevels(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	tr := seed(t, s, "b")
	c := s.Client()

	require.NoError(t, s.Paragraphs.Delete(ctx, tr.para1.Id))
	assert.EqualValues(t, 1, rows(t, c, ParagraphsTable))
	assert.Zero(t, rows(t, c, ParagraphAnnotationsTable))

	require.NoError(t, s.ChapterAnnotations.Delete(ctx, tr.chapNote.Id))
	assert.Zero(t, rows(t, c, ChapterAnnotationsTable))
	assert.EqualValues(t, 1, rows(t, c, ChaptersTable))

	require.NoError(t, s.Chapters.Delete(ctx, tr.chapter.Id))
	assert.Zero(t, rows(t, c, ChaptersTable))
	assert.Zero(t, rows(t, c, ParagraphsTable))

	require.NoError(t, s.Volumes.Delete(ctx, tr.volume.Id))
	for _, table := range hierarchyTables[1:] {
		assert.Zero(t, rows(t, c, table), table)
	}
	assert.EqualValues(t, 1, rows(t, c, BooksTable))
}

func TestDeleteSubjectDetachesParagraphs(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		tr := seed(t, s, "b")

		require.NoError(t, s.Subjects.Delete(ctx, tr.subject.Id))

		sub, err := s.Subjects.GetByID(ctx, tr.subject.Id)
		require.NoError(t, err)
		assert.Nil(t, sub)

		p, err := s.Paragraphs.GetByID(ctx, tr.para1.Id)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Nil(t, p.SubjectId)
		assert.EqualValues(t, 2, rows(t, s.Client(), ParagraphsTable))

		n, err := s.Paragraphs.CountBySubject(ctx, tr.subject.Id)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestDetachPagesThroughLargeSubjects(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	tr := seed(t, s, "b")
	for i := 3; i < detachBatch+10; i++ {
		_, err := s.Paragraphs.Create(ctx, &Paragraph{ChapterId: tr.chapter.Id, Number: i, Text: "t", SubjectId: &tr.subject.Id})
		require.NoError(t, err)
	}

	require.NoError(t, s.Subjects.Delete(ctx, tr.subject.Id))
	n, err := s.Paragraphs.CountBySubject(ctx, tr.subject.Id)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCascadeFailsFastAndSweepResumes(t *testing.T) {
	mem := memstore.New(Schema())
	fc := newFailingClient(mem, ChaptersTable)
	s := New(fc, WithClock(func() time.Time { return epoch }))
	ctx := context.Background()
	tr := seed(t, s, "b")

	err := s.Volumes.Delete(ctx, tr.volume.Id)
	require.ErrorIs(t, err, errInjected)

	assert.Zero(t, rows(t, mem, VolumesTable))
	assert.Zero(t, rows(t, mem, SubjectsTable))
	assert.EqualValues(t, 1, rows(t, mem, ChaptersTable))
	assert.EqualValues(t, 1, rows(t, mem, ChapterAnnotationsTable))
	assert.EqualValues(t, 2, rows(t, mem, ParagraphsTable))
	assert.Zero(t, fc.called(ChapterAnnotationsTable))

	pending, err := s.PendingCascades(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, LevelVolume, pending[0].Level)
	assert.Equal(t, tr.volume.Id, pending[0].EntityId)
	assert.Contains(t, pending[0].LastError, errInjected.Error())

	res, err := s.Sweep(ctx, SweepOptions{MinAge: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Skipped: 1}, res)

	res, err = s.Sweep(ctx, SweepOptions{})
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Failed: 1}, res)

	fc.disarm()
	res, err = s.Sweep(ctx, SweepOptions{})
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Resumed: 1}, res)

	for _, table := range hierarchyTables[1:] {
		assert.Zero(t, rows(t, mem, table), table)
	}
	assert.Zero(t, rows(t, mem, PendingCascadesTable))
}

func TestRetriedDeleteReusesJournalEntry(t *testing.T) {
	mem := memstore.New(Schema())
	fc := newFailingClient(mem, ParagraphsTable)
	s := New(fc)
	ctx := context.Background()
	tr := seed(t, s, "b")

	require.ErrorIs(t, s.Chapters.Delete(ctx, tr.chapter.Id), errInjected)
	require.ErrorIs(t, s.Chapters.Delete(ctx, tr.chapter.Id), errInjected)
	assert.EqualValues(t, 1, rows(t, mem, PendingCascadesTable))

	fc.disarm()
	require.NoError(t, s.Chapters.Delete(ctx, tr.chapter.Id))
	assert.Zero(t, rows(t, mem, PendingCascadesTable))
	assert.Zero(t, rows(t, mem, ParagraphAnnotationsTable))
}

func TestWithoutJournal(t *testing.T) {
	mem := memstore.New(Schema())
	fc := newFailingClient(mem, ChaptersTable)
	s := New(fc, WithoutJournal())
	tr := seed(t, s, "b")

	require.ErrorIs(t, s.Volumes.Delete(context.Background(), tr.volume.Id), errInjected)
	assert.Zero(t, rows(t, mem, PendingCascadesTable))
}

func TestPlansCoverEveryLevel(t *testing.T) {
	for _, l := range []Level{
		LevelBook, LevelVolume, LevelSubject, LevelChapter, LevelParagraph,
		LevelVolumeAnnotation, LevelChapterAnnotation, LevelParagraphAnnotation,
	} {
		p, ok := PlanFor(l)
		require.True(t, ok, l)
		assert.NotEmpty(t, p.Table)
	}
	p, _ := PlanFor(LevelSubject)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "SubjectId", p.Steps[0].Detach)
}
