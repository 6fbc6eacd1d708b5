package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/readerstore/pkg/docstore"
	"github.com/nainya/readerstore/pkg/docstore/docstoretest"
)

func TestConformance(t *testing.T) {
	docstoretest.Run(t, func(t *testing.T) docstore.Client {
		s := New(docstoretest.Schema())
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestClosedStore(t *testing.T) {
	s := New(docstoretest.Schema())
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), docstoretest.Items, "x")
	assert.True(t, errors.Is(err, ErrClosed))
	assert.True(t, errors.Is(s.Ping(context.Background()), ErrClosed))
}

func TestReturnedDocumentsAreCopies(t *testing.T) {
	s := New(docstoretest.Schema())
	ctx := context.Background()

	stored, err := s.Upsert(ctx, docstoretest.Items, "a", []byte(`{"Id":"a","Title":"keep"}`))
	require.NoError(t, err)
	copy(stored, `{"Id":"a","Title":"oops"}`)

	doc, err := s.Get(ctx, docstoretest.Items, "a")
	require.NoError(t, err)
	assert.Equal(t, "keep", docstore.Field(doc, "Title").String())
}

func TestUpsertRejectsNonObjects(t *testing.T) {
	s := New(docstoretest.Schema())
	_, err := s.Upsert(context.Background(), docstoretest.Items, "a", []byte(`[1,2]`))
	assert.True(t, errors.Is(err, docstore.ErrInvalidDoc))

	_, err = s.Upsert(context.Background(), docstoretest.Items, "", []byte(`{}`))
	assert.True(t, errors.Is(err, docstore.ErrEmptyID))
}

func TestCanceledContext(t *testing.T) {
	s := New(docstoretest.Schema())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scan(ctx, docstoretest.Items, docstore.Query{})
	assert.ErrorIs(t, err, context.Canceled)
}
