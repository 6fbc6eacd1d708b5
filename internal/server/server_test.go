// Integration tests for the maintenance gRPC server
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nainya/readerstore/internal/logger"
	"github.com/nainya/readerstore/internal/metrics"
	"github.com/nainya/readerstore/pkg/bookstore"
	"github.com/nainya/readerstore/pkg/content"
	"github.com/nainya/readerstore/pkg/docstore"
	"github.com/nainya/readerstore/pkg/docstore/memstore"
	"github.com/nainya/readerstore/pkg/quality"
)

const bufSize = 1024 * 1024

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

var errInjected = errors.New("injected")

// flakyClient fails DeleteByIndex on one table while armed.
type flakyClient struct {
	docstore.Client
	table string
	armed atomic.Bool
}

func (c *flakyClient) DeleteByIndex(ctx context.Context, table, index string, key docstore.Key) (int64, error) {
	if c.armed.Load() && table == c.table {
		return 0, errInjected
	}
	return c.Client.DeleteByIndex(ctx, table, index, key)
}

type fixture struct {
	client  *MaintenanceClient
	conn    *grpc.ClientConn
	books   *bookstore.Store
	content *content.Store
	store   *flakyClient
	metrics *metrics.Metrics
}

func setupTestServer(t *testing.T) *fixture {
	t.Helper()
	schema := docstore.MustSchema(append(bookstore.Tables(), content.Tables()...)...)
	fc := &flakyClient{Client: memstore.New(schema), table: bookstore.ChaptersTable}
	clock := func() time.Time { return fixedNow }

	books := bookstore.New(fc, bookstore.WithClock(clock))
	cs := content.New(fc, content.WithClock(clock))
	m := metrics.NewMetrics(prometheus.NewRegistry())

	svc := NewService(books, cs, quality.DefaultWeights(), m, logger.Nop())
	svc.now = clock
	grpcServer, _ := NewGRPCServer(svc, m, logger.Nop())

	lis := bufconn.Listen(bufSize)
	go func() {
		_ = grpcServer.Serve(lis)
	}()

	bufDialer := func(context.Context, string) (net.Conn, error) {
		return lis.Dial()
	}
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(bufDialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		grpcServer.Stop()
		lis.Close()
	})
	return &fixture{
		client:  NewMaintenanceClient(conn),
		conn:    conn,
		books:   books,
		content: cs,
		store:   fc,
		metrics: m,
	}
}

func seedBook(t *testing.T, s *bookstore.Store) *bookstore.Book {
	t.Helper()
	ctx := context.Background()
	b, err := s.Books.Create(ctx, &bookstore.Book{Title: "Walden"})
	require.NoError(t, err)
	v, err := s.Volumes.Create(ctx, &bookstore.Volume{BookId: b.Id, Number: 1})
	require.NoError(t, err)
	_, err = s.Chapters.Create(ctx, &bookstore.Chapter{VolumeId: v.Id, Number: 1})
	require.NoError(t, err)
	return b
}

func TestHealthOverJSONCodec(t *testing.T) {
	f := setupTestServer(t)
	ctx := context.Background()

	resp, err := healthpb.NewHealthClient(f.conn).Check(ctx,
		&healthpb.HealthCheckRequest{Service: ServiceName},
		grpc.CallContentSubtype(CodecName))
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestSweepResumesFailedCascade(t *testing.T) {
	f := setupTestServer(t)
	ctx := context.Background()
	b := seedBook(t, f.books)

	f.store.armed.Store(true)
	_, err := f.client.DeleteEntity(ctx, &DeleteEntityRequest{Level: "book", Id: b.Id})
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))

	pending, err := f.client.ListPendingCascades(ctx, &ListPendingCascadesRequest{})
	require.NoError(t, err)
	require.Len(t, pending.Entries, 1)
	assert.Equal(t, "book", pending.Entries[0].Level)
	assert.Equal(t, b.Id, pending.Entries[0].EntityId)
	assert.Contains(t, pending.Entries[0].LastError, "injected")

	res, err := f.client.SweepCascades(ctx, &SweepCascadesRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	f.store.armed.Store(false)
	res, err = f.client.SweepCascades(ctx, &SweepCascadesRequest{})
	require.NoError(t, err)
	assert.Equal(t, &SweepCascadesResponse{Pending: 1, Resumed: 1}, res)

	chapters, err := f.books.Chapters.FindByBook(ctx, b.Id, bookstore.FindOptions{})
	require.NoError(t, err)
	assert.Empty(t, chapters)

	pending, err = f.client.ListPendingCascades(ctx, &ListPendingCascadesRequest{})
	require.NoError(t, err)
	assert.Empty(t, pending.Entries)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CascadeSweepsTotal.WithLabelValues("resumed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CascadeSweepsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GrpcRequestsTotal.WithLabelValues("/"+ServiceName+"/DeleteEntity", "Internal")))
}

func TestSweepRejectsNegativeLimit(t *testing.T) {
	f := setupTestServer(t)
	_, err := f.client.SweepCascades(context.Background(), &SweepCascadesRequest{Limit: -1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestDeleteEntityErrors(t *testing.T) {
	f := setupTestServer(t)
	ctx := context.Background()

	_, err := f.client.DeleteEntity(ctx, &DeleteEntityRequest{Level: "shelf", Id: "x"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.client.DeleteEntity(ctx, &DeleteEntityRequest{Level: "book"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRecomputeQualitySingle(t *testing.T) {
	f := setupTestServer(t)
	ctx := context.Background()
	published := fixedNow.AddDate(0, 0, -30)

	p, err := f.content.Posts.Create(ctx, &content.Post{
		AuthorId:      "u1",
		Title:         "On reading slowly",
		Tags:          []string{"a", "b"},
		PublishedDate: &published,
	})
	require.NoError(t, err)
	for field, delta := range map[string]int64{
		"ViewsCount": 500, "LikesCount": 50, "CommentsCount": 25, "BookmarksCount": 5,
	} {
		require.NoError(t, f.content.Posts.IncrementCounter(ctx, p.Id, field, delta))
	}

	resp, err := f.client.RecomputeQuality(ctx, &RecomputeQualityRequest{Kind: "post", Id: p.Id})
	require.NoError(t, err)
	require.NotNil(t, resp.Score)
	assert.InDelta(t, 1.765, *resp.Score, 1e-9)
	assert.Equal(t, 1, resp.Posts)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QualityRecomputedTotal.WithLabelValues("post")))

	_, err = f.client.RecomputeQuality(ctx, &RecomputeQualityRequest{Kind: "post", Id: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = f.client.RecomputeQuality(ctx, &RecomputeQualityRequest{Kind: "essay", Id: p.Id})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRecomputeQualityByStatus(t *testing.T) {
	f := setupTestServer(t)
	ctx := context.Background()

	for _, st := range []content.Status{content.StatusApproved, content.StatusApproved, content.StatusPending} {
		_, err := f.content.Posts.Create(ctx, &content.Post{AuthorId: "u1", Title: "t", Status: st})
		require.NoError(t, err)
	}

	resp, err := f.client.RecomputeQuality(ctx, &RecomputeQualityRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Posts)
	assert.Nil(t, resp.Score)

	resp, err = f.client.RecomputeQuality(ctx, &RecomputeQualityRequest{Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Posts)
}

func TestToStatus(t *testing.T) {
	dup := &bookstore.DuplicateOrdinalError{Table: "Volumes", Index: "parent_number", ConflictingID: "b-1"}
	tests := []struct {
		err  error
		want codes.Code
	}{
		{dup, codes.AlreadyExists},
		{&content.ValidationError{Kind: "post", Field: "Title", Reason: "required"}, codes.InvalidArgument},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errInjected, codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(toStatus(tt.err)), tt.err.Error())
	}
}

func TestObservabilityEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.RecordRecompute(3, 0, 0)

	var down atomic.Bool
	ready := func(context.Context) error {
		if down.Load() {
			return errInjected
		}
		return nil
	}
	srv := httptest.NewServer(NewObservabilityServer(0, reg, ready, logger.Nop()).Handler())
	defer srv.Close()

	get := func(path string) int {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get("/health"))
	assert.Equal(t, http.StatusOK, get("/ready"))
	down.Store(true)
	assert.Equal(t, http.StatusServiceUnavailable, get("/ready"))

	n, err := testutil.GatherAndCount(reg, "readerstore_quality_recomputed_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, http.StatusOK, get("/metrics"))
}
