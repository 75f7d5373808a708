package api

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServiceName is the service name reported next to the overall "" status
const HealthServiceName = "rechnung.InvoiceService"

// GRPCHealthServer exposes the standard gRPC health service. Its status follows the
// database check.
type GRPCHealthServer struct {
	server   *grpc.Server
	health   *health.Server
	check    Checker
	interval time.Duration
	log      *zap.Logger
}

func NewGRPCHealthServer(check Checker, interval time.Duration, log *zap.Logger) *GRPCHealthServer {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return &GRPCHealthServer{server: srv, health: hs, check: check, interval: interval, log: log}
}

// Serve probes the dependency every interval and serves on lis until Stop
func (s *GRPCHealthServer) Serve(ctx context.Context, lis net.Listener) error {
	s.refresh(ctx)
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.refresh(ctx)
			}
		}
	}()
	s.log.Info("grpc health server listening", zap.String("addr", lis.Addr().String()))
	return s.server.Serve(lis)
}

func (s *GRPCHealthServer) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.check != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.check(checkCtx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			s.log.Warn("health check failed", zap.Error(err))
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(HealthServiceName, status)
}

// Stop marks everything NOT_SERVING and drains open calls
func (s *GRPCHealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
