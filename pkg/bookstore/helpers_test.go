package bookstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/nainya/readerstore/pkg/docstore"
	"github.com/nainya/readerstore/pkg/docstore/memstore"
	"github.com/nainya/readerstore/pkg/docstore/sqlitestore"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type backend struct {
	name string
	open func(t *testing.T) docstore.Client
}

var backends = []backend{
	{"memory", func(t *testing.T) docstore.Client {
		return memstore.New(Schema())
	}},
	{"sqlite", func(t *testing.T) docstore.Client {
		s, err := sqlitestore.Open(context.Background(), sqlitestore.MemoryDSN("bookstore_"+ulid.Make().String()), Schema())
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

// eachBackend runs fn once per backend with a fresh store.
func eachBackend(t *testing.T, fn func(t *testing.T, s *Store)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, New(b.open(t), WithClock(func() time.Time { return epoch })))
		})
	}
}

func newMemStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return epoch })}, opts...)
	return New(memstore.New(Schema()), opts...)
}

// tree is a small fixture: one book with one volume holding a subject, a
// chapter with two paragraphs (one filed under the subject) and an
// annotation on every annotatable level.
type tree struct {
	book     *Book
	volume   *Volume
	subject  *Subject
	chapter  *Chapter
	para1    *Paragraph
	para2    *Paragraph
	volNote  *VolumeAnnotation
	chapNote *ChapterAnnotation
	paraNote *ParagraphAnnotation
}

func seed(t *testing.T, s *Store, bookID string) tree {
	t.Helper()
	ctx := context.Background()
	var (
		tr  tree
		err error
	)
	tr.book, err = s.Books.Create(ctx, &Book{Id: bookID, Title: "Meditations"})
	require.NoError(t, err)
	tr.volume, err = s.Volumes.Create(ctx, &Volume{BookId: bookID, Number: 1, Title: "Book One"})
	require.NoError(t, err)
	tr.subject, err = s.Subjects.Create(ctx, &Subject{VolumeId: tr.volume.Id, Number: 1, Title: "Debts"})
	require.NoError(t, err)
	tr.chapter, err = s.Chapters.Create(ctx, &Chapter{VolumeId: tr.volume.Id, Number: 1, Title: "Gratitude"})
	require.NoError(t, err)
	tr.para1, err = s.Paragraphs.Create(ctx, &Paragraph{ChapterId: tr.chapter.Id, Number: 1, Text: "From my grandfather", SubjectId: &tr.subject.Id})
	require.NoError(t, err)
	tr.para2, err = s.Paragraphs.Create(ctx, &Paragraph{ChapterId: tr.chapter.Id, Number: 2, Text: "From my father"})
	require.NoError(t, err)
	tr.volNote, err = s.VolumeAnnotations.Create(ctx, &VolumeAnnotation{VolumeId: tr.volume.Id, Number: 1, Note: Note{AuthorId: "u1", Text: "v"}})
	require.NoError(t, err)
	tr.chapNote, err = s.ChapterAnnotations.Create(ctx, &ChapterAnnotation{ChapterId: tr.chapter.Id, Number: 1, Note: Note{AuthorId: "u1", Text: "c"}})
	require.NoError(t, err)
	tr.paraNote, err = s.ParagraphAnnotations.Create(ctx, &ParagraphAnnotation{ParagraphId: tr.para1.Id, Number: 1, Note: Note{AuthorId: "u1", Text: "p"}})
	require.NoError(t, err)
	return tr
}

func rows(t *testing.T, c docstore.Client, table string) int64 {
	t.Helper()
	n, err := c.Count(context.Background(), table, docstore.Query{})
	require.NoError(t, err)
	return n
}

var errInjected = errors.New("injected store failure")

// failingClient fails DeleteByIndex on one table while armed.
type failingClient struct {
	docstore.Client
	mu    sync.Mutex
	table string
	armed bool
	calls map[string]int
}

func newFailingClient(c docstore.Client, table string) *failingClient {
	return &failingClient{Client: c, table: table, armed: true, calls: map[string]int{}}
}

func (f *failingClient) DeleteByIndex(ctx context.Context, table, index string, key docstore.Key) (int64, error) {
	f.mu.Lock()
	f.calls[table]++
	fail := f.armed && table == f.table
	f.mu.Unlock()
	if fail {
		return 0, errInjected
	}
	return f.Client.DeleteByIndex(ctx, table, index, key)
}

func (f *failingClient) disarm() {
	f.mu.Lock()
	f.armed = false
	f.mu.Unlock()
}

func (f *failingClient) called(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[table]
}

// gatedClient holds every upsert into table until n of them are waiting.
type gatedClient struct {
	docstore.Client
	table string
	wg    *sync.WaitGroup
}

func (g *gatedClient) Upsert(ctx context.Context, table, id string, doc []byte) ([]byte, error) {
	if table == g.table {
		g.wg.Done()
		g.wg.Wait()
	}
	return g.Client.Upsert(ctx, table, id, doc)
}
