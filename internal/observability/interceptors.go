package observability

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"voice-room-service/internal/observability/logging"
	"voice-room-service/internal/observability/metrics"
)

// Probe traffic from orchestrators is counted but only logged at debug.
const healthServicePrefix = "/grpc.health.v1.Health/"

// UnaryServerInterceptor counts and logs unary calls.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	logger := logging.WithComponent("grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		observeCall(m, logger, info.FullMethod, "unary", start, err)
		return resp, err
	}
}

// StreamServerInterceptor counts and logs streaming calls, including
// health watches and reflection.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	logger := logging.WithComponent("grpc")
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		observeCall(m, logger, info.FullMethod, "stream", start, err)
		return err
	}
}

func observeCall(m *metrics.Metrics, logger zerolog.Logger, method, kind string, start time.Time, err error) {
	code := status.Code(err).String()
	m.RecordGRPCCall(method, code)

	ev := logger.Info()
	switch {
	case err != nil:
		ev = logger.Warn().Err(err)
	case strings.HasPrefix(method, healthServicePrefix):
		ev = logger.Debug()
	}
	ev.Str("method", method).
		Str("kind", kind).
		Str("code", code).
		Dur("duration", time.Since(start)).
		Msg("gRPC call handled")
}
