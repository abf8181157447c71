package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/jeeves-cluster-organization/ddscore/core/domain"
)

// ServerOptions returns the default server options for the administrative
// surface: the JSON codec forced in place of proto-wire encoding, an
// OpenTelemetry stats handler, and the logging/recovery/metrics
// interceptor chain.
func ServerOptions(logger Logger) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(ChainUnaryInterceptors(
			RecoveryInterceptor(logger, nil),
			LoggingInterceptor(logger),
			MetricsInterceptor(),
		)),
	}
}

// GracefulServer wraps the administrative gRPC server with graceful
// shutdown, mirroring the originating implementation's GracefulServer:
// listen, serve in a goroutine, GracefulStop on cancellation or a
// bounded-wait forced Stop if the grace period expires.
type GracefulServer struct {
	grpcServer *grpc.Server
	admin      *AdminServer
	logger     Logger
	address    string
	listener   net.Listener

	shutdownMu sync.Mutex
	isShutdown bool
}

// NewGracefulServer wires registry and types behind an AdminServer and
// registers it on a fresh *grpc.Server built from opts, or the defaults
// from ServerOptions if opts is empty.
func NewGracefulServer(registry *domain.Registry, types TypeRegistry, address string, logger Logger, opts ...grpc.ServerOption) *GracefulServer {
	if logger == nil {
		logger = noopLogger{}
	}
	if len(opts) == 0 {
		opts = ServerOptions(logger)
	}
	admin := NewAdminServer(registry, types, logger)
	grpcServer := grpc.NewServer(opts...)
	grpcServer.RegisterService(&ServiceDesc, admin)

	return &GracefulServer{grpcServer: grpcServer, admin: admin, logger: logger, address: address}
}

// Start listens and serves, blocking until ctx is cancelled, at which
// point it performs a graceful shutdown and returns ctx.Err().
func (s *GracefulServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = lis
	s.logger.Info("grpc_admin_server_started", "address", s.address)

	errCh := make(chan error, 1)
	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("grpc_admin_shutdown_initiated", "reason", ctx.Err().Error())
		s.GracefulStop()
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

// StartBackground starts the server in a goroutine, returning a channel
// that receives a terminal error (or is closed without one on clean stop).
func (s *GracefulServer) StartBackground() (<-chan error, error) {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = lis
	s.logger.Info("grpc_admin_server_started_background", "address", s.address)

	errCh := make(chan error, 1)
	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh, nil
}

// GracefulStop stops accepting new connections and waits for in-flight
// RPCs to finish. Safe to call more than once.
func (s *GracefulServer) GracefulStop() {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	if s.isShutdown {
		return
	}
	s.isShutdown = true
	s.logger.Info("grpc_admin_graceful_stop_started")
	s.grpcServer.GracefulStop()
	s.logger.Info("grpc_admin_graceful_stop_completed")
}

// ShutdownWithTimeout attempts a graceful stop, forcing an immediate
// Stop if it has not completed within timeout.
func (s *GracefulServer) ShutdownWithTimeout(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("grpc_admin_graceful_shutdown_timeout", "timeout_ms", timeout.Milliseconds())
		s.grpcServer.Stop()
	}
}

// Address returns the configured listen address.
func (s *GracefulServer) Address() string { return s.address }
