package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/readerstore/pkg/docstore"
	"github.com/nainya/readerstore/pkg/docstore/docstoretest"
	"github.com/nainya/readerstore/pkg/docstore/memstore"
)

func TestInstrumentedClientPassesConformance(t *testing.T) {
	docstoretest.Run(t, func(t *testing.T) docstore.Client {
		return InstrumentClient(memstore.New(docstoretest.Schema()), NewMetrics(prometheus.NewRegistry()), nil)
	})
}

func TestInstrumentedClientRecords(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	c := InstrumentClient(memstore.New(docstoretest.Schema()), m, nil)
	ctx := context.Background()

	_, err := c.Upsert(ctx, docstoretest.Items, "a", []byte(`{"Id":"a","Number":1}`))
	require.NoError(t, err)
	_, err = c.Get(ctx, docstoretest.Items, "a")
	require.NoError(t, err)
	_, err = c.Get(ctx, "Nope", "a")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues(docstoretest.Items, "upsert", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues(docstoretest.Items, "get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("Nope", "get", "error")))
}

func TestRecordSweepAndRecompute(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordSweep(3, 2, 1)
	m.RecordSweep(1, 1, 0)
	m.RecordRecompute(4, 2, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PendingCascades))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CascadeSweepsTotal.WithLabelValues("resumed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CascadeSweepsTotal.WithLabelValues("failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.QualityRecomputedTotal.WithLabelValues("post")))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := NewMetrics(prometheus.NewRegistry())
	b := NewMetrics(prometheus.NewRegistry())
	a.RecordGrpcRequest("/m", "OK", 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.GrpcRequestsTotal.WithLabelValues("/m", "OK")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.GrpcRequestsTotal.WithLabelValues("/m", "OK")))
}
