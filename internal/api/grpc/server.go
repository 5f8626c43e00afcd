// Package grpcapi serves the gRPC health and reflection services used by
// orchestrators and debugging tools.
package grpcapi

import (
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"voice-room-service/internal/observability"
	"voice-room-service/internal/observability/logging"
	"voice-room-service/internal/observability/metrics"
)

// ServiceName is the health-checked service name.
const ServiceName = "voice.room.TranscriptionService"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger zerolog.Logger
}

// New builds a server with health and reflection registered. Services
// start NOT_SERVING until SetServing(true).
func New(m *metrics.Metrics) *Server {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	g := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(m)),
	)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, hs)
	reflection.Register(g)

	s := &Server{grpc: g, health: hs, logger: logging.WithComponent("grpc")}
	s.SetServing(false)
	return s
}

// SetServing flips the health status of the server and ServiceName.
func (s *Server) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve blocks serving lis.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")
	return s.grpc.Serve(lis)
}

// GracefulStop marks the server not serving and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.SetServing(false)
	s.grpc.GracefulStop()
}
