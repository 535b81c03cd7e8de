// Package grpcserver exposes the standard gRPC health service for the HTTP binaries.
package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health mirrors dependency checks into a grpc health server.
// The overall status ("") is SERVING only while every check passes.
type Health struct {
	srv     *health.Server
	log     *zap.Logger
	checks  map[string]Pinger
	timeout time.Duration
}

// NewHealth registers named checks; a nil map means the process is always serving.
func NewHealth(log *zap.Logger, checks map[string]Pinger) *Health {
	h := &Health{srv: health.NewServer(), log: log, checks: checks, timeout: 2 * time.Second}
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for name := range checks {
		h.srv.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return h
}

// Server returns the underlying health server.
func (h *Health) Server() *health.Server { return h.srv }

// Probe runs every check once and updates statuses.
func (h *Health) Probe(ctx context.Context) bool {
	all := true
	for name, p := range h.checks {
		cctx, cancel := context.WithTimeout(ctx, h.timeout)
		err := p.Ping(cctx)
		cancel()
		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			all = false
			st = healthpb.HealthCheckResponse_NOT_SERVING
			h.log.Warn("health check failed", zap.String("check", name), zap.Error(err))
		}
		h.srv.SetServingStatus(name, st)
	}
	overall := healthpb.HealthCheckResponse_SERVING
	if !all {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus("", overall)
	return all
}

// Run probes every interval until ctx is done, then marks everything NOT_SERVING.
func (h *Health) Run(ctx context.Context, interval time.Duration) {
	h.Probe(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-t.C:
			h.Probe(ctx)
		}
	}
}

// NewServer builds a plaintext gRPC server carrying the health service.
// Reflection is registered in development only.
func NewServer(log *zap.Logger, h *Health, dev bool) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
		grpc.ChainStreamInterceptor(
			RecoverStream(log),
			LoggingStream(log),
		),
	)
	healthpb.RegisterHealthServer(s, h.Server())
	if dev {
		reflection.Register(s)
	}
	return s
}
