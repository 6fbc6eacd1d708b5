package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/readerstore/pkg/bookstore"
	"github.com/nainya/readerstore/pkg/docstore/memstore"
)

const sample = `
books:
  - id: meditations
    title: Meditations
    authors: [Marcus Aurelius]
    language: en
    volumes:
      - number: 1
        title: Book One
        subjects:
          - {number: 1, title: Debts}
        chapters:
          - number: 1
            title: Gratitude
            paragraphs:
              - {number: 1, subject: 1, text: From my grandfather Verus}
              - {number: 2, text: From my father}
          - number: 2
            paragraphs:
              - {number: 1, subject: 1, text: From my mother}
      - number: 2
        chapters:
          - number: 1
            paragraphs:
              - {number: 1, text: Begin the morning}
`

func TestImport(t *testing.T) {
	s := bookstore.New(memstore.New(bookstore.Schema()))
	ctx := context.Background()

	sum, err := Import(ctx, s, strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, Summary{Books: 1, Volumes: 2, Subjects: 1, Chapters: 3, Paragraphs: 4}, sum)

	book, err := s.Books.GetByID(ctx, "meditations")
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.EqualValues(t, 2, book.VolumesCount)
	assert.EqualValues(t, 3, book.ChaptersCount)
	assert.EqualValues(t, 4, book.ParagraphsCount)

	vol, err := s.Volumes.GetByID(ctx, "meditations-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, vol.ChaptersCount)
	assert.EqualValues(t, 1, vol.SubjectsCount)

	sub, err := s.Subjects.GetByID(ctx, "meditations-1-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, sub.ParagraphsCount)

	p, err := s.Paragraphs.GetByPathAndNumber(ctx, "meditations", 1, 2, 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NotNil(t, p.SubjectId)
	assert.Equal(t, "meditations-1-1", *p.SubjectId)
}

func TestImportRejectsDuplicates(t *testing.T) {
	s := bookstore.New(memstore.New(bookstore.Schema()))
	doc := `
books:
  - id: b
    title: T
    volumes:
      - number: 1
        chapters:
          - {number: 1, title: a}
          - {number: 1, title: b}
`
	sum, err := Import(context.Background(), s, strings.NewReader(doc))
	assert.ErrorIs(t, err, bookstore.ErrDuplicateOrdinal)
	assert.Equal(t, 1, sum.Chapters)
}

func TestImportRejectsUnknownSubject(t *testing.T) {
	s := bookstore.New(memstore.New(bookstore.Schema()))
	doc := `
books:
  - id: b
    title: T
    volumes:
      - number: 1
        chapters:
          - number: 1
            paragraphs:
              - {number: 1, subject: 3, text: x}
`
	_, err := Import(context.Background(), s, strings.NewReader(doc))
	assert.ErrorContains(t, err, "no subject 3")
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("books:\n  - titel: typo\n"))
	assert.Error(t, err)
}
