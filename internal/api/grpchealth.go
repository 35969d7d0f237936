package api

import (
	"context"
	"net"
	"time"

	"github.com/coastle/coastle/internal/storage"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes grpc.health.v1.Health for orchestrator probes. The
// serving status follows the alert store's ping.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	store  storage.AlertStore
	logger zerolog.Logger
}

// NewHealthServer creates a gRPC health server
func NewHealthServer(store storage.AlertStore, logger zerolog.Logger) *HealthServer {
	h := &HealthServer{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		store:  store,
		logger: logger.With().Str("component", "grpc-health").Logger(),
	}
	healthpb.RegisterHealthServer(h.grpc, h.health)
	return h
}

// Check pings the store once and publishes the resulting status
func (h *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.store.Ping(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		h.logger.Warn().Err(err).Msg("Alert store ping failed")
	}
	h.health.SetServingStatus("", status)
	return status
}

// Serve listens on port and refreshes the status every interval until ctx is done
func (h *HealthServer) Serve(ctx context.Context, port string, interval time.Duration) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			h.Check(pingCtx)
			cancel()
			select {
			case <-ctx.Done():
				h.health.Shutdown()
				h.grpc.GracefulStop()
				return
			case <-ticker.C:
			}
		}
	}()

	h.logger.Info().Str("address", lis.Addr().String()).Msg("Starting gRPC health server")
	return h.grpc.Serve(lis)
}
