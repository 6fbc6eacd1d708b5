// ABOUTME: Conformance suite every document store backend must pass
// ABOUTME: Backends call Run from their own tests with a fresh client factory

package docstoretest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/nainya/readerstore/pkg/docstore"
)

// Items is the table the suite exercises.
const Items = "Items"

// Schema returns the schema the suite expects a backend to be opened with.
func Schema() *docstore.Schema {
	return docstore.MustSchema(docstore.Table{
		Name: Items,
		Indexes: []docstore.IndexDef{
			{Name: "parent_number", Fields: []string{"ParentId", "Number"}},
			{Name: "parent_id", Fields: []string{"ParentId"}},
		},
	})
}

// Item is the suite's document shape.
type Item struct {
	Id         string
	ParentId   *string
	Number     int
	Title      string
	Tags       []string
	LikesCount int64
}

// Factory opens a fresh, empty client serving Schema().
type Factory func(t *testing.T) docstore.Client

// Run executes the suite against clients produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("GetMissingReturnsNil", func(t *testing.T) {
		c := open(t)
		doc, err := c.Get(context.Background(), Items, "nope")
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("UpsertReturnsStoredDocument", func(t *testing.T) {
		c := open(t)
		got := upsert(t, c, item("p", 1, "first"))
		assert.Equal(t, "p-1", got.Id)
		assert.Equal(t, "first", got.Title)
		assert.Equal(t, []string{"x"}, got.Tags)
	})

	t.Run("UpsertIsIdempotent", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		it := item("p", 1, "same")
		a := upsert(t, c, it)
		b := upsert(t, c, it)
		assert.Equal(t, a, b)

		n, err := c.Count(ctx, Items, docstore.Query{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	t.Run("UpsertReplacesAndReindexes", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		it := item("p", 1, "before")
		upsert(t, c, it)
		it.Number = 2
		it.Title = "after"
		upsert(t, c, it)

		doc, err := c.GetByIndex(ctx, Items, "parent_number", docstore.Key{"p", 1})
		require.NoError(t, err)
		assert.Nil(t, doc, "old index entry must be gone")

		doc, err = c.GetByIndex(ctx, Items, "parent_number", docstore.Key{"p", 2})
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, "p-1", docstore.IDOf(doc))
	})

	t.Run("GetByIndex", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		upsert(t, c, item("p", 1, "one"))
		upsert(t, c, item("p", 2, "two"))
		upsert(t, c, item("q", 1, "other"))

		doc, err := c.GetByIndex(ctx, Items, "parent_number", docstore.Key{"p", 2})
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, "two", docstore.Field(doc, "Title").String())

		doc, err = c.GetByIndex(ctx, Items, "parent_number", docstore.Key{"p", 9})
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("ScanFiltersOrdersAndPages", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		for i := 1; i <= 5; i++ {
			upsert(t, c, item("p", i, fmt.Sprintf("t%d", i)))
		}
		upsert(t, c, item("q", 1, "elsewhere"))

		docs, err := c.Scan(ctx, Items, docstore.NewQuery().
			Index("parent_id", "p").
			Filter("Number", docstore.Gte, 2).
			OrderBy("Number", true).
			Skip(1).
			Limit(2).
			Build())
		require.NoError(t, err)
		items, err := docstore.DecodeAll[Item](docs)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, 4, items[0].Number)
		assert.Equal(t, 3, items[1].Number)

		n, err := c.Count(ctx, Items, docstore.NewQuery().Index("parent_id", "p").Build())
		require.NoError(t, err)
		assert.EqualValues(t, 5, n)
	})

	t.Run("ScanNullPredicates", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		upsert(t, c, item("p", 1, "parented"))
		orphan := Item{Id: "orphan", Number: 1, Title: "orphan"}
		upsert(t, c, orphan)

		docs, err := c.Scan(ctx, Items, docstore.Query{
			Filter: []docstore.Predicate{{Field: "ParentId", Op: docstore.IsNull}},
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "orphan", docstore.IDOf(docs[0]))

		docs, err = c.Scan(ctx, Items, docstore.Query{
			Filter: []docstore.Predicate{{Field: "ParentId", Op: docstore.Ne, Value: "p"}},
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "orphan", docstore.IDOf(docs[0]))
	})

	t.Run("UpdateSetsAndIncrements", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		upsert(t, c, item("p", 1, "old"))

		err := c.Update(ctx, Items, "p-1",
			docstore.Set("Title", "new"),
			docstore.Set("Tags", []string{"a", "b"}),
			docstore.Increment("LikesCount", 3),
		)
		require.NoError(t, err)
		require.NoError(t, c.Update(ctx, Items, "p-1", docstore.Increment("LikesCount", -1)))

		got := get(t, c, "p-1")
		assert.Equal(t, "new", got.Title)
		assert.Equal(t, []string{"a", "b"}, got.Tags)
		assert.EqualValues(t, 2, got.LikesCount)
	})

	t.Run("UpdateSetNullReindexes", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		upsert(t, c, item("p", 1, "x"))
		require.NoError(t, c.Update(ctx, Items, "p-1", docstore.Set("ParentId", nil)))

		got := get(t, c, "p-1")
		assert.Nil(t, got.ParentId)
		n, err := c.Count(ctx, Items, docstore.NewQuery().Index("parent_id", "p").Build())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("UpdateMissingIsNoop", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		require.NoError(t, c.Update(ctx, Items, "ghost", docstore.Increment("LikesCount", 1)))
		doc, err := c.Get(ctx, Items, "ghost")
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("ConcurrentIncrementsConverge", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		upsert(t, c, item("p", 1, "hot"))

		const n = 50
		var g errgroup.Group
		for i := 0; i < n; i++ {
			g.Go(func() error {
				return c.Update(ctx, Items, "p-1", docstore.Increment("LikesCount", 1))
			})
		}
		require.NoError(t, g.Wait())
		assert.EqualValues(t, n, get(t, c, "p-1").LikesCount)
	})

	t.Run("Delete", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		upsert(t, c, item("p", 1, "gone"))
		require.NoError(t, c.Delete(ctx, Items, "p-1"))
		require.NoError(t, c.Delete(ctx, Items, "p-1"), "deleting twice is not an error")

		doc, err := c.GetByIndex(ctx, Items, "parent_number", docstore.Key{"p", 1})
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("DeleteByIndex", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		for i := 1; i <= 3; i++ {
			upsert(t, c, item("p", i, "child"))
		}
		upsert(t, c, item("q", 1, "survivor"))

		n, err := c.DeleteByIndex(ctx, Items, "parent_id", docstore.Key{"p"})
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)

		n, err = c.DeleteByIndex(ctx, Items, "parent_id", docstore.Key{"p"})
		require.NoError(t, err)
		assert.Zero(t, n)

		total, err := c.Count(ctx, Items, docstore.Query{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
	})

	t.Run("GroupCount", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		upsert(t, c, item("p", 1, ""))
		upsert(t, c, item("p", 2, ""))
		upsert(t, c, item("q", 1, ""))
		upsert(t, c, item("r", 1, ""))

		got, err := c.GroupCount(ctx, Items, "ParentId", []string{"p", "q", "z"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"p": 2, "q": 1}, got)
	})

	t.Run("SchemaErrors", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		_, err := c.Get(ctx, "Nope", "x")
		assert.True(t, errors.Is(err, docstore.ErrUnknownTable), "got %v", err)

		_, err = c.GetByIndex(ctx, Items, "nope", docstore.Key{"p"})
		assert.True(t, errors.Is(err, docstore.ErrUnknownIndex), "got %v", err)

		_, err = c.GetByIndex(ctx, Items, "parent_number", docstore.Key{"p"})
		assert.True(t, errors.Is(err, docstore.ErrKeyArity), "got %v", err)

		err = c.Update(ctx, Items, "p-1", docstore.Set("Bad Field", 1))
		assert.True(t, errors.Is(err, docstore.ErrInvalidField), "got %v", err)
	})
}

func item(parent string, number int, title string) Item {
	p := parent
	return Item{
		Id:       fmt.Sprintf("%s-%d", parent, number),
		ParentId: &p,
		Number:   number,
		Title:    title,
		Tags:     []string{"x"},
	}
}

func upsert(t *testing.T, c docstore.Client, it Item) Item {
	t.Helper()
	doc, err := docstore.Encode(it)
	require.NoError(t, err)
	stored, err := c.Upsert(context.Background(), Items, it.Id, doc)
	require.NoError(t, err)
	var out Item
	require.NoError(t, docstore.Decode(stored, &out))
	return out
}

func get(t *testing.T, c docstore.Client, id string) Item {
	t.Helper()
	doc, err := c.Get(context.Background(), Items, id)
	require.NoError(t, err)
	require.NotNil(t, doc, "document %s missing", id)
	var out Item
	require.NoError(t, docstore.Decode(doc, &out))
	return out
}
