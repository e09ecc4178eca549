package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"eastviewpta.org/internal/obs"
)

type readinessChecker interface {
	Check(ctx context.Context) error
}

// HealthServer exposes grpc.health.v1 and keeps its serving status in step
// with the readiness probe.
type HealthServer struct {
	*health.Server
	readiness readinessChecker
	interval  time.Duration
	timeout   time.Duration
}

func NewHealthServer(r readinessChecker, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthServer{
		Server:    health.NewServer(),
		readiness: r,
		interval:  interval,
		timeout:   2 * time.Second,
	}
}

// Register attaches the health service to s.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.Server)
}

// Probe runs the readiness check once and publishes the result for both the
// overall server and the named service.
func (h *HealthServer) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	status := healthpb.HealthCheckResponse_SERVING
	err := h.readiness.Check(ctx)
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		obs.Logger().Warn("readiness probe failed", "module", "grpc", "error", err)
	}
	h.SetServingStatus("", status)
	h.SetServingStatus(serviceName, status)
	return err == nil
}

// Run probes until ctx ends, then marks everything as not serving.
func (h *HealthServer) Run(ctx context.Context) {
	h.Probe(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return
		case <-ticker.C:
			h.Probe(ctx)
		}
	}
}
