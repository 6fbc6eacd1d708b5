package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/readerstore/internal/logger"
	"github.com/nainya/readerstore/internal/metrics"
)

const maxMsgSize = 16 * 1024 * 1024

// NewGRPCServer creates a gRPC server carrying the maintenance, health and
// reflection services. The health server starts SERVING for the whole
// server and for ServiceName.
func NewGRPCServer(svc MaintenanceServer, m *metrics.Metrics, log *logger.Logger) (*grpc.Server, *health.Server) {
	if log == nil {
		log = logger.Nop()
	}
	s := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
		grpc.ChainUnaryInterceptor(GrpcMetricsInterceptor(m, log)),
	)
	RegisterMaintenanceServer(s, svc)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	reflection.Register(s)
	return s, hs
}
