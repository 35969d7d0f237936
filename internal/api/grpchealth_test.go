package api

import (
	"context"
	"errors"
	"testing"

	"github.com/coastle/coastle/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type downStore struct {
	*storage.MemoryStore
}

func (downStore) Ping(ctx context.Context) error {
	return errors.New("database unreachable")
}

func TestHealthServer_Check(t *testing.T) {
	ctx := context.Background()

	up := NewHealthServer(storage.NewMemoryStore(), zerolog.Nop())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, up.Check(ctx))

	resp, err := up.health.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	down := NewHealthServer(downStore{storage.NewMemoryStore()}, zerolog.Nop())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, down.Check(ctx))
}

func TestHealthEndpoint_Unhealthy(t *testing.T) {
	env := newTestEnv(t)
	env.server.deps.Store = downStore{env.store}

	rec := env.do(t, "GET", "/health", nil)

	assert.Equal(t, 503, rec.Code)
}
