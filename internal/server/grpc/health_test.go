package grpcserver

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type switchPinger struct{ err error }

func (s *switchPinger) Ping(context.Context) error { return s.err }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func servingStatus(t *testing.T, h *Health, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := h.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealth_ProbeTracksDependency(t *testing.T) {
	db := &switchPinger{}
	h := NewHealth(zaptest.NewLogger(t), map[string]Pinger{"database": db})
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, h, "database"))

	require.True(t, h.Probe(context.Background()))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, h, ""))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, h, "database"))

	db.err = errors.New("connection refused")
	require.False(t, h.Probe(context.Background()))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, h, ""))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, h, "database"))
}

func TestHealth_NoChecksAlwaysServing(t *testing.T) {
	h := NewHealth(zaptest.NewLogger(t), nil)
	require.True(t, h.Probe(context.Background()))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, h, ""))
}

func TestNewServer_ServesHealthOverGRPC(t *testing.T) {
	log := zaptest.NewLogger(t)
	h := NewHealth(log, map[string]Pinger{"database": pingFunc(func(context.Context) error { return nil })})
	h.Probe(context.Background())

	lis := bufconn.Listen(1 << 20)
	s := NewServer(log, h, true)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: "database"})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
