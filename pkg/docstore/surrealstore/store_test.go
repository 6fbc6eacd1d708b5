package surrealstore

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/readerstore/pkg/docstore"
	"github.com/nainya/readerstore/pkg/docstore/docstoretest"
)

// openTest connects to the server named by SURREALDB_URL, using a fresh
// database per test. Tests skip when the variable is unset.
func openTest(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("SURREALDB_URL")
	if url == "" {
		t.Skip("SURREALDB_URL not set")
	}
	user := os.Getenv("SURREALDB_USER")
	if user == "" {
		user = "root"
	}
	pass := os.Getenv("SURREALDB_PASS")
	if pass == "" {
		pass = "root"
	}
	s, err := Open(context.Background(), Config{
		URL:       url,
		Namespace: "readerstore_test",
		Database:  "t" + strings.ToLower(ulid.Make().String()),
		Username:  user,
		Password:  pass,
	}, docstoretest.Schema())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	docstoretest.Run(t, func(t *testing.T) docstore.Client {
		return openTest(t)
	})
}

func TestWhereBindsValues(t *testing.T) {
	vars := map[string]any{}
	got := where([]docstore.Predicate{
		{Field: "BookId", Op: docstore.Eq, Value: "b"},
		{Field: "SubjectId", Op: docstore.IsNull},
		{Field: "Number", Op: docstore.Lt, Value: int64(3)},
	}, vars)

	assert.Equal(t, " WHERE BookId = $k0 AND (SubjectId IS NONE OR SubjectId IS NULL) AND Number < $k2", got)
	assert.Equal(t, map[string]any{"k0": "b", "k2": int64(3)}, vars)
}
