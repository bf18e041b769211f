package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/louisbranch/eventledger/internal/platform/timeouts"
	ledgergrpc "github.com/louisbranch/eventledger/internal/services/ledger/api/grpc/ledger"
	grpcmeta "github.com/louisbranch/eventledger/internal/services/ledger/api/grpc/metadata"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/business"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage/integrity"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage/memory"
	storagesqlite "github.com/louisbranch/eventledger/internal/services/ledger/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config selects the listener and the store behind it.
type Config struct {
	// Addr is the listen address, e.g. ":8090".
	Addr string
	// Backend is BackendMemory or BackendSQLite.
	Backend string
	// EventsDBPath is the SQLite journal path.
	EventsDBPath string
	// Keyring signs chain hashes when set.
	Keyring *integrity.Keyring
	// RegisteredTypesOnly rejects event types outside the built-in registry.
	RegisteredTypesOnly bool
	// ShutdownTimeout bounds graceful stop; defaults to timeouts.Shutdown.
	ShutdownTimeout time.Duration
}

// Server hosts the ledger service.
type Server struct {
	listener        net.Listener
	grpcServer      *grpc.Server
	health          *health.Server
	store           storage.EventStore
	shutdownTimeout time.Duration
}

// New creates a configured ledger server.
func New(ctx context.Context, cfg Config) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	traced := storage.NewTraced(store)

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(grpcmeta.UnaryServerInterceptor(nil)),
	)
	healthServer := health.NewServer()
	ledgergrpc.RegisterLedgerServer(grpcServer, ledgergrpc.NewService(traced))
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ledgergrpc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = timeouts.Shutdown
	}
	return &Server{
		listener:        listener,
		grpcServer:      grpcServer,
		health:          healthServer,
		store:           traced,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

// Addr returns the listener address for the ledger server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a ledger server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	srv, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Serve starts the ledger server and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.closeStore()

	slog.Info("ledger server listening", "addr", s.listener.Addr().String())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}

	select {
	case <-ctx.Done():
		if s.health != nil {
			s.health.Shutdown()
		}
		s.stop()
		return handleErr(<-serveErr)
	case err := <-serveErr:
		return handleErr(err)
	}
}

// stop drains in-flight calls, forcing a stop after the shutdown timeout.
func (s *Server) stop() {
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(s.shutdownTimeout):
		slog.Warn("graceful stop timed out; forcing", "timeout", s.shutdownTimeout)
		s.grpcServer.Stop()
		<-stopped
	}
}

func (s *Server) closeStore() {
	if s == nil || s.store == nil {
		return
	}
	closer, ok := s.store.(storage.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Error("close event store", "error", err)
	}
}

// NewRegistry returns the registry of event types this binary knows about.
func NewRegistry() (*event.Registry, error) {
	registry := event.NewRegistry()
	if err := business.Register(registry); err != nil {
		return nil, fmt.Errorf("register business events: %w", err)
	}
	return registry, nil
}

func openStore(ctx context.Context, cfg Config) (storage.EventStore, error) {
	var registry *event.Registry
	if cfg.RegisteredTypesOnly {
		var err error
		registry, err = NewRegistry()
		if err != nil {
			return nil, err
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendMemory:
		return memory.New(memory.WithRegistry(registry), memory.WithKeyring(cfg.Keyring)), nil
	case BackendSQLite:
		store, err := storagesqlite.Open(ctx, cfg.EventsDBPath,
			storagesqlite.WithRegistry(registry),
			storagesqlite.WithKeyring(cfg.Keyring),
		)
		if err != nil {
			return nil, fmt.Errorf("open sqlite event store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
