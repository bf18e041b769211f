package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	platformgrpc "github.com/louisbranch/eventledger/internal/platform/grpc"
	"github.com/louisbranch/eventledger/internal/platform/timeouts"
	ledgergrpc "github.com/louisbranch/eventledger/internal/services/ledger/api/grpc/ledger"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/business"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage/integrity"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage/sqlite"
	"google.golang.org/grpc"
)

// closableEventStore extends EventStore with a Close method for resource cleanup.
type closableEventStore interface {
	storage.EventStore
	Close() error
}

// remoteStore reads a running ledger and closes the connection with it.
type remoteStore struct {
	*ledgergrpc.Client
	conn *grpc.ClientConn
}

func (r remoteStore) Close() error {
	return r.conn.Close()
}

// buildEventRegistry constructs the registry used for payload validation.
func buildEventRegistry() (*event.Registry, error) {
	registry := event.NewRegistry()
	if err := business.Register(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

func openStore(ctx context.Context, cfg Config) (closableEventStore, error) {
	if addr := strings.TrimSpace(cfg.Addr); addr != "" {
		return dialStore(ctx, addr)
	}
	return openEventStore(ctx, cfg.EventsDBPath)
}

func dialStore(ctx context.Context, addr string) (closableEventStore, error) {
	logger := slog.Default().With("addr", addr)
	conn, err := platformgrpc.DialWithHealth(ctx, nil, addr, ledgergrpc.ServiceName, timeouts.GRPCDial, logger, platformgrpc.DefaultClientDialOptions()...)
	if err != nil {
		return nil, fmt.Errorf("dial ledger: %w", err)
	}
	return remoteStore{Client: ledgergrpc.NewClient(conn), conn: conn}, nil
}

func openEventStore(ctx context.Context, path string) (*sqlite.Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("events db path is required")
	}
	keyring, err := integrity.KeyringFromEnv()
	if err != nil {
		return nil, err
	}
	store, err := sqlite.Open(ctx, path, sqlite.WithKeyring(keyring))
	if err != nil {
		return nil, fmt.Errorf("open events store: %w", err)
	}
	return store, nil
}
