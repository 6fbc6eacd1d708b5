package mongostore

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/nainya/readerstore/pkg/docstore"
	"github.com/nainya/readerstore/pkg/docstore/docstoretest"
)

// openTest uses a fresh database per test on the server named by
// MONGODB_URI. Tests skip when the variable is unset.
func openTest(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, uri, "rs_"+strings.ToLower(ulid.Make().String()), docstoretest.Schema())
	require.NoError(t, err)
	t.Cleanup(func() {
		s.db.Drop(context.Background())
		s.Close()
	})
	return s
}

func TestConformance(t *testing.T) {
	docstoretest.Run(t, func(t *testing.T) docstore.Client {
		return openTest(t)
	})
}

func TestFilterCombinesWithAnd(t *testing.T) {
	got := filter([]docstore.Predicate{
		{Field: "BookId", Op: docstore.Eq, Value: "b"},
		{Field: "Number", Op: docstore.Gte, Value: int64(2)},
	})
	want := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "BookId", Value: "b"}},
		bson.D{{Key: "Number", Value: bson.D{{Key: "$gte", Value: int64(2)}}}},
	}}}
	assert.Equal(t, want, got)

	assert.Equal(t, bson.D{}, filter(nil))
	assert.Equal(t, bson.D{{Key: "SubjectId", Value: nil}},
		filter([]docstore.Predicate{{Field: "SubjectId", Op: docstore.IsNull}}))
}

func TestToJSONStripsObjectID(t *testing.T) {
	raw, err := bson.Marshal(bson.D{{Key: "_id", Value: "a-1"}, {Key: "Id", Value: "a-1"}, {Key: "Number", Value: int32(1)}})
	require.NoError(t, err)

	doc, err := toJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Id":"a-1","Number":1}`, string(doc))
}
