package api

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/annel0/tileworld/internal/logging"
)

// ShardService имя сервиса в gRPC health для готовности пула шардов
const ShardService = "tileworld.shard"

// HealthServer gRPC health-check узла
type HealthServer struct {
	srv    *grpc.Server
	health *health.Server
}

func NewHealthServer() *HealthServer {
	h := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, h)
	h.SetServingStatus(ShardService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{srv: srv, health: h}
}

// SetServing переключает состояние узла и сервиса шардов
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ShardService, status)
}

// Serve обслуживает l до отмены ctx
func (h *HealthServer) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		h.health.Shutdown()
		h.srv.GracefulStop()
	}()
	logging.GetComponentLogger("api").Info("gRPC health слушает %s", l.Addr())
	if err := h.srv.Serve(l); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc health: %w", err)
	}
	return nil
}

// Run слушает addr по TCP
func (h *HealthServer) Run(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	return h.Serve(ctx, l)
}
