package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/readerstore/pkg/docstore"
	"github.com/nainya/readerstore/pkg/docstore/docstoretest"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), MemoryDSN("testdb_"+ulid.Make().String()), docstoretest.Schema())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	docstoretest.Run(t, func(t *testing.T) docstore.Client {
		return openMemory(t)
	})
}

func TestIndexesAreCreated(t *testing.T) {
	s := openMemory(t)

	var n int
	err := s.DB().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL`,
		docstoretest.Items,
	).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReopenKeepsDocuments(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reader.db")

	s, err := Open(ctx, FileDSN(path), docstoretest.Schema())
	require.NoError(t, err)
	_, err = s.Upsert(ctx, docstoretest.Items, "a", []byte(`{"Id":"a","LikesCount":1}`))
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, docstoretest.Items, "a", docstore.Increment("LikesCount", 4)))
	require.NoError(t, s.Close())

	s, err = Open(ctx, FileDSN(path), docstoretest.Schema())
	require.NoError(t, err)
	defer s.Close()

	doc, err := s.Get(ctx, docstoretest.Items, "a")
	require.NoError(t, err)
	assert.EqualValues(t, 5, docstore.Field(doc, "LikesCount").Int())
}

func TestWhereBuildsNullSafeComparisons(t *testing.T) {
	cond, args := where([]docstore.Predicate{
		{Field: "A", Op: docstore.Eq, Value: "x"},
		{Field: "B", Op: docstore.IsNull},
		{Field: "C", Op: docstore.Gt, Value: true},
	})
	assert.Equal(t,
		" WHERE json_extract(data, '$.A') IS ? AND json_extract(data, '$.B') IS NULL AND json_extract(data, '$.C') > ?",
		cond)
	assert.Equal(t, []any{"x", int64(1)}, args)
}
