package server

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Registrar is a common interface for all gRPC service registrars
type Registrar interface {
	Register(s *grpc.Server)
}

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// HealthRegistrar exposes grpc.health.v1.Health. The overall status ("")
// is SERVING while ping succeeds and NOT_SERVING otherwise.
type HealthRegistrar struct {
	health   *health.Server
	ping     Pinger
	interval time.Duration
}

func NewHealthRegistrar(ping Pinger, interval time.Duration) *HealthRegistrar {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthRegistrar{health: health.NewServer(), ping: ping, interval: interval}
}

func (h *HealthRegistrar) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

// Check pings once and publishes the resulting status.
func (h *HealthRegistrar) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.ping(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", status)
	return status
}

// Run re-checks every interval until ctx is done, then marks the service
// NOT_SERVING for the remaining shutdown.
func (h *HealthRegistrar) Run(ctx context.Context) {
	h.Check(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}
