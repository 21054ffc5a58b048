package health

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/temperature-monitor/internal/logger"
	"github.com/oshokin/temperature-monitor/internal/version"
)

// ServiceName is the health service name reported for the poller.
const ServiceName = version.Name

// Server exposes grpc.health.v1 for the monitor. The poller status starts as
// NOT_SERVING and follows SetServing; the overall server status is SERVING
// while the process runs.
type Server struct {
	// grpcServer hosts the health service.
	grpcServer *grpc.Server
	// health keeps per-service statuses.
	health *grpchealth.Server
}

// NewServer creates the gRPC server with the health service registered.
func NewServer(opts ...grpc.ServerOption) *Server {
	h := grpchealth.NewServer()
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h)

	return &Server{
		grpcServer: s,
		health:     h,
	}
}

// SetServing updates the poller status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus(ServiceName, status)
}

// Serve handles connections on lis until ctx is canceled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	ctx = logger.WithName(ctx, "grpc-health")

	logger.InfoKV(ctx, "Health service listening", "listen_address", lis.Addr().String())

	// Done channel is closed after GracefulStop finishes so Serve only
	// returns once the server has fully stopped.
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}

		logger.Info(ctx, "Shutting down gRPC server")
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		close(done)
	}()

	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		close(stopped)

		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// ListenAndServe listens on address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	return s.Serve(ctx, lis)
}
