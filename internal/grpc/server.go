package grpc

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	ggrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall "" entry.
const ServiceName = "pos.v1.PosService"

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer mirrors the reachability of the store and session backends
// into the standard gRPC health protocol.
type HealthServer struct {
	health *health.Server
	deps   map[string]Pinger
	log    *slog.Logger
}

func NewHealthServer(deps map[string]Pinger, log *slog.Logger) *HealthServer {
	return &HealthServer{
		health: health.NewServer(),
		deps:   deps,
		log:    log,
	}
}

// NewServer builds a gRPC server with tracing, health and reflection registered.
func NewServer(hs *HealthServer) *ggrpc.Server {
	srv := ggrpc.NewServer(ggrpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(srv, hs.health)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(srv)
	return srv
}

// Check pings every dependency once and publishes the result.
func (h *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.log.WarnContext(ctx, "dependency unhealthy", "dependency", name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	return status
}

func (h *HealthServer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING so clients drain before GracefulStop.
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
}
