// ddscored is a standalone process exposing the domain core over the
// administrative gRPC surface.
//
// Usage:
//
//	go run ./cmd/ddscored                  # Default :50051
//	go run ./cmd/ddscored -addr :8080      # Custom port
//	go build -o ddscored ./cmd/ddscored && ./ddscored
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"

	"github.com/jeeves-cluster-organization/ddscore/core/domain"
	ddslog "github.com/jeeves-cluster-organization/ddscore/core/log"
	ddsgrpc "github.com/jeeves-cluster-organization/ddscore/grpc"
	"github.com/jeeves-cluster-organization/ddscore/observability"
)

// sampleTypes is the binary's own registry of Go types publishable over
// the admin surface's CreateTopic RPC, keyed by the descriptor name
// callers pass in CreateTopicRequest.TypeDescriptor.
type sampleTypes map[string]reflect.Type

func (s sampleTypes) Lookup(name string) (reflect.Type, bool) {
	t, ok := s[name]
	return t, ok
}

func main() {
	addr := flag.String("addr", ":50051", "gRPC admin server address")
	tracingEndpoint := flag.String("otlp-endpoint", "", "OTLP gRPC collector endpoint (tracing disabled if empty)")
	flag.Parse()

	logger := ddslog.New("ddscored ")
	logger.Info("ddscored_starting", "version", "1.0.0", "address", *addr)

	if *tracingEndpoint != "" {
		shutdown, err := observability.InitTracer("ddscored", *tracingEndpoint)
		if err != nil {
			stdlog.Fatalf("failed to init tracing: %v", err)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	registry := domain.NewRegistry(nil, logger)
	logger.Info("domain_registry_created")

	types := sampleTypes{}
	server := ddsgrpc.NewGracefulServer(registry, types, *addr, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh, err := server.StartBackground()
	if err != nil {
		stdlog.Fatalf("failed to start admin server: %v", err)
	}

	logger.Info("ddscored_ready", "address", *addr)
	fmt.Printf("\nddscored admin server running on %s\n", *addr)
	fmt.Println("Press Ctrl+C to stop")

	select {
	case sig := <-sigCh:
		logger.Info("shutdown_signal_received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("admin_server_error", "error", err.Error())
		}
	}

	server.ShutdownWithTimeout(5 * time.Second)
	logger.Info("ddscored_stopped")
}
