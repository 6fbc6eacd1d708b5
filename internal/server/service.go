// Package server implements the readerstore maintenance gRPC service
package server

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nainya/readerstore/internal/logger"
	"github.com/nainya/readerstore/internal/metrics"
	"github.com/nainya/readerstore/pkg/bookstore"
	"github.com/nainya/readerstore/pkg/content"
	"github.com/nainya/readerstore/pkg/quality"
)

// ServiceName is the fully qualified maintenance service name.
const ServiceName = "readerstore.v1.Maintenance"

type SweepCascadesRequest struct {
	Limit         int   `json:"limit"`
	MinAgeSeconds int64 `json:"min_age_seconds"`
}

type SweepCascadesResponse struct {
	Pending int `json:"pending"`
	Resumed int `json:"resumed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

type ListPendingCascadesRequest struct {
	Limit int `json:"limit"`
}

type PendingCascade struct {
	Id          string    `json:"id"`
	Level       string    `json:"level"`
	EntityId    string    `json:"entity_id"`
	StartedDate time.Time `json:"started_date"`
	Attempts    int64     `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
}

type ListPendingCascadesResponse struct {
	Entries []PendingCascade `json:"entries"`
}

// RecomputeQualityRequest rescores one item when Id is set, otherwise every
// item with Status.
type RecomputeQualityRequest struct {
	Kind   string `json:"kind"`
	Id     string `json:"id"`
	Status string `json:"status"`
	Batch  int    `json:"batch"`
}

type RecomputeQualityResponse struct {
	Posts    int      `json:"posts"`
	Comments int      `json:"comments"`
	Replies  int      `json:"replies"`
	Score    *float64 `json:"score,omitempty"`
}

// DeleteEntityRequest deletes a hierarchy entity and its cascade.
type DeleteEntityRequest struct {
	Level string `json:"level"`
	Id    string `json:"id"`
}

type DeleteEntityResponse struct{}

// MaintenanceServer is the server API of the maintenance service.
type MaintenanceServer interface {
	SweepCascades(context.Context, *SweepCascadesRequest) (*SweepCascadesResponse, error)
	ListPendingCascades(context.Context, *ListPendingCascadesRequest) (*ListPendingCascadesResponse, error)
	RecomputeQuality(context.Context, *RecomputeQualityRequest) (*RecomputeQualityResponse, error)
	DeleteEntity(context.Context, *DeleteEntityRequest) (*DeleteEntityResponse, error)
}

// Service implements MaintenanceServer over the bookstore and content stores.
type Service struct {
	books   *bookstore.Store
	content *content.Store
	weights quality.Weights
	metrics *metrics.Metrics
	log     *logger.Logger
	now     func() time.Time
}

// NewService creates the maintenance service.
func NewService(books *bookstore.Store, cs *content.Store, w quality.Weights, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{books: books, content: cs, weights: w, metrics: m, log: log.Component("maintenance"), now: time.Now}
}

func (s *Service) SweepCascades(ctx context.Context, req *SweepCascadesRequest) (*SweepCascadesResponse, error) {
	if req.Limit < 0 || req.MinAgeSeconds < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit and min_age_seconds must not be negative")
	}
	res, err := s.books.Sweep(ctx, bookstore.SweepOptions{
		Limit:  req.Limit,
		MinAge: time.Duration(req.MinAgeSeconds) * time.Second,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	pending := res.Resumed + res.Failed + res.Skipped
	s.metrics.RecordSweep(pending, res.Resumed, res.Failed)
	return &SweepCascadesResponse{Pending: pending, Resumed: res.Resumed, Failed: res.Failed, Skipped: res.Skipped}, nil
}

func (s *Service) ListPendingCascades(ctx context.Context, req *ListPendingCascadesRequest) (*ListPendingCascadesResponse, error) {
	if req.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}
	entries, err := s.books.PendingCascades(ctx, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &ListPendingCascadesResponse{Entries: make([]PendingCascade, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, PendingCascade{
			Id:          e.Id,
			Level:       string(e.Level),
			EntityId:    e.EntityId,
			StartedDate: e.StartedDate,
			Attempts:    e.Attempts,
			LastError:   e.LastError,
		})
	}
	return resp, nil
}

func (s *Service) RecomputeQuality(ctx context.Context, req *RecomputeQualityRequest) (*RecomputeQualityResponse, error) {
	if req.Id == "" {
		st := content.Status(req.Status)
		if st == "" {
			st = content.StatusApproved
		}
		rc, err := content.NewRecomputer(s.content, s.weights)
		if err != nil {
			return nil, toStatus(err)
		}
		res, err := rc.Run(ctx, st, req.Batch)
		if err != nil {
			return nil, toStatus(err)
		}
		s.metrics.RecordRecompute(res.Posts, res.Comments, res.Replies)
		return &RecomputeQualityResponse{Posts: res.Posts, Comments: res.Comments, Replies: res.Replies}, nil
	}

	now := s.now()
	var (
		score float64
		found bool
		resp  RecomputeQualityResponse
	)
	switch req.Kind {
	case "post":
		p, err := s.content.Posts.RecomputeQuality(ctx, req.Id, s.weights.Post, now)
		if err != nil {
			return nil, toStatus(err)
		}
		if found = p != nil; found {
			score, resp.Posts = p.ContentQuality, 1
		}
	case "comment":
		c, err := s.content.Comments.RecomputeQuality(ctx, req.Id, s.weights.Comment, now)
		if err != nil {
			return nil, toStatus(err)
		}
		if found = c != nil; found {
			score, resp.Comments = c.ContentQuality, 1
		}
	case "reply":
		r, err := s.content.Replies.RecomputeQuality(ctx, req.Id, s.weights.Reply, now)
		if err != nil {
			return nil, toStatus(err)
		}
		if found = r != nil; found {
			score, resp.Replies = r.ContentQuality, 1
		}
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown kind %q", req.Kind)
	}
	if !found {
		return nil, status.Errorf(codes.NotFound, "%s %s not found", req.Kind, req.Id)
	}
	s.metrics.RecordRecompute(resp.Posts, resp.Comments, resp.Replies)
	resp.Score = &score
	return &resp, nil
}

func (s *Service) DeleteEntity(ctx context.Context, req *DeleteEntityRequest) (*DeleteEntityResponse, error) {
	if req.Id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	var err error
	switch bookstore.Level(req.Level) {
	case bookstore.LevelBook:
		err = s.books.Books.Delete(ctx, req.Id)
	case bookstore.LevelVolume:
		err = s.books.Volumes.Delete(ctx, req.Id)
	case bookstore.LevelSubject:
		err = s.books.Subjects.Delete(ctx, req.Id)
	case bookstore.LevelChapter:
		err = s.books.Chapters.Delete(ctx, req.Id)
	case bookstore.LevelParagraph:
		err = s.books.Paragraphs.Delete(ctx, req.Id)
	case bookstore.LevelVolumeAnnotation:
		err = s.books.VolumeAnnotations.Delete(ctx, req.Id)
	case bookstore.LevelChapterAnnotation:
		err = s.books.ChapterAnnotations.Delete(ctx, req.Id)
	case bookstore.LevelParagraphAnnotation:
		err = s.books.ParagraphAnnotations.Delete(ctx, req.Id)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown level %q", req.Level)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	s.log.Info().Str("level", req.Level).Str("id", req.Id).Msg("entity deleted")
	return &DeleteEntityResponse{}, nil
}

// toStatus maps store and repository errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, bookstore.ErrDuplicateOrdinal):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, bookstore.ErrValidation), errors.Is(err, content.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// RegisterMaintenanceServer registers srv on s.
func RegisterMaintenanceServer(s grpc.ServiceRegistrar, srv MaintenanceServer) {
	s.RegisterService(&maintenanceServiceDesc, srv)
}

func unary[Req any, Resp any](method string, call func(MaintenanceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MaintenanceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MaintenanceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var maintenanceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MaintenanceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("SweepCascades", MaintenanceServer.SweepCascades),
		unary("ListPendingCascades", MaintenanceServer.ListPendingCascades),
		unary("RecomputeQuality", MaintenanceServer.RecomputeQuality),
		unary("DeleteEntity", MaintenanceServer.DeleteEntity),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "readerstore/v1/maintenance",
}

// MaintenanceClient calls the maintenance service.
type MaintenanceClient struct {
	cc grpc.ClientConnInterface
}

func NewMaintenanceClient(cc grpc.ClientConnInterface) *MaintenanceClient {
	return &MaintenanceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MaintenanceClient) SweepCascades(ctx context.Context, in *SweepCascadesRequest, opts ...grpc.CallOption) (*SweepCascadesResponse, error) {
	return invoke[SweepCascadesResponse](ctx, c.cc, "SweepCascades", in, opts)
}

func (c *MaintenanceClient) ListPendingCascades(ctx context.Context, in *ListPendingCascadesRequest, opts ...grpc.CallOption) (*ListPendingCascadesResponse, error) {
	return invoke[ListPendingCascadesResponse](ctx, c.cc, "ListPendingCascades", in, opts)
}

func (c *MaintenanceClient) RecomputeQuality(ctx context.Context, in *RecomputeQualityRequest, opts ...grpc.CallOption) (*RecomputeQualityResponse, error) {
	return invoke[RecomputeQualityResponse](ctx, c.cc, "RecomputeQuality", in, opts)
}

func (c *MaintenanceClient) DeleteEntity(ctx context.Context, in *DeleteEntityRequest, opts ...grpc.CallOption) (*DeleteEntityResponse, error) {
	return invoke[DeleteEntityResponse](ctx, c.cc, "DeleteEntity", in, opts)
}
