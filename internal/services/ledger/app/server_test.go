package server

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	platformgrpc "github.com/louisbranch/eventledger/internal/platform/grpc"
	ledgergrpc "github.com/louisbranch/eventledger/internal/services/ledger/api/grpc/ledger"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/business"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/replay"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

type stray struct{}

func (stray) EventType() event.Type { return "stray.event" }

func startServer(t *testing.T, cfg Config) (*grpc.ClientConn, context.CancelFunc, <-chan error) {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv, err := New(ctx, cfg)
	if err != nil {
		cancel()
		t.Fatalf("new server: %v", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()

	conn, err := grpc.NewClient(srv.Addr(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.WaitForReady(true)),
	)
	if err != nil {
		cancel()
		t.Fatalf("dial server: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
	})
	return conn, cancel, serveErr
}

func TestServeStopsOnContext(t *testing.T) {
	conn, cancel, serveErr := startServer(t, Config{})

	callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer callCancel()
	if _, err := ledgergrpc.NewClient(conn).StreamVersion(callCtx, "S1"); err != nil {
		t.Fatalf("stream version: %v", err)
	}

	cancel()
	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestHealthCheckReportsServing(t *testing.T) {
	conn, _, _ := startServer(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := platformgrpc.WaitForHealth(ctx, conn, ledgergrpc.ServiceName, nil); err != nil {
		t.Fatalf("wait for health: %v", err)
	}
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("health status = %v", resp.GetStatus())
	}
}

func TestSQLiteBackendProjectsBusinessRemotely(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	conn, _, _ := startServer(t, Config{
		Backend:             BackendSQLite,
		EventsDBPath:        path,
		RegisteredTypesOnly: true,
	})
	client := ledgergrpc.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.AppendBatch(ctx, "biz-1", 0,
		business.Created{Name: "Acme"},
		business.Updated{Name: "Acme Corp"},
	); err != nil {
		t.Fatalf("append: %v", err)
	}
	state, err := replay.Project(ctx, client, "biz-1", business.Handlers)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if state.Name != "Acme Corp" {
		t.Fatalf("name = %q, want Acme Corp", state.Name)
	}

	if _, err := client.Append(ctx, "biz-1", 2, stray{}); !errors.Is(err, event.ErrTypeUnknown) {
		t.Fatalf("expected unknown type rejection, got %v", err)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Config{Addr: "127.0.0.1:0", Backend: "etcd"})
	if err == nil {
		t.Fatal("expected unknown backend error")
	}
}

func TestNewRegistryKnowsBusinessEvents(t *testing.T) {
	registry, err := NewRegistry()
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	for _, typ := range business.Types() {
		if _, ok := registry.Definition(typ); !ok {
			t.Fatalf("registry missing %s", typ)
		}
	}
}

func TestAddrNilSafe(t *testing.T) {
	var s *Server
	if s.Addr() != "" {
		t.Fatal("expected empty addr for nil server")
	}
}
