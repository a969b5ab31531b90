// Package app wires the oracle runtime: ledger store, HTTP API, fulfillment
// loop and gRPC health.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/jimrubenstein/randomproof/internal/platform/timeouts"
	"github.com/jimrubenstein/randomproof/internal/services/ledger"
	ledgersqlite "github.com/jimrubenstein/randomproof/internal/services/ledger/storage/sqlite"
	"github.com/jimrubenstein/randomproof/internal/services/oracle/api"
	"github.com/jimrubenstein/randomproof/internal/services/oracle/auth"
	"github.com/jimrubenstein/randomproof/internal/services/oracle/fulfiller"
)

// HealthService is the gRPC health service name reported by the oracle.
const HealthService = "randomproof.oracle"

// Config controls oracle startup.
type Config struct {
	GRPCAddr  string
	HTTPAddr  string
	DBPath    string
	Auth      auth.Config
	Fulfiller fulfiller.Config
}

// Server hosts the oracle service.
type Server struct {
	listener     net.Listener
	grpcServer   *grpc.Server
	health       *health.Server
	store        *ledgersqlite.Store
	httpListener net.Listener
	httpServer   *http.Server
	fulfiller    *fulfiller.Loop
}

// New opens the ledger and binds both listeners.
func New(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, errors.New("ledger db path is required")
	}
	store, err := openLedgerStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	l, err := ledger.New(store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on grpc addr %s: %w", cfg.GRPCAddr, err)
	}
	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err)
	}

	mux := http.NewServeMux()
	api.NewServer(l, cfg.Auth).RegisterRoutes(mux)
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:     listener,
		grpcServer:   grpcServer,
		health:       healthServer,
		store:        store,
		httpListener: httpListener,
		httpServer:   httpServer,
		fulfiller:    fulfiller.New(l, cfg.Fulfiller, nil),
	}, nil
}

// Addr returns the gRPC listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HTTPAddr returns the HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Run creates and serves an oracle until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the oracle and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeStore()

	fulfillerDone := make(chan struct{})
	go func() {
		defer close(fulfillerDone)
		if err := s.fulfiller.Run(serverCtx); err != nil {
			log.Printf("oracle fulfiller stopped: %v", err)
		}
	}()
	defer func() {
		cancel()
		<-fulfillerDone
	}()

	log.Printf("oracle health server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	log.Printf("oracle HTTP server listening at %v", s.httpListener.Addr())
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- s.httpServer.Serve(s.httpListener)
	}()

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
	shutdownGRPC := func() {
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	}
	shutdownHTTP := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}

	select {
	case <-ctx.Done():
		shutdownGRPC()
		shutdownHTTP()
		return handleErr(<-serveErr)
	case err := <-serveErr:
		shutdownHTTP()
		return handleErr(err)
	case err := <-httpErr:
		shutdownGRPC()
		if handled := handleErr(<-serveErr); handled != nil {
			return handled
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

func (s *Server) closeStore() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		log.Printf("close ledger store: %v", err)
	}
}

func openLedgerStore(path string) (*ledgersqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := ledgersqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger sqlite store: %w", err)
	}
	return store, nil
}
