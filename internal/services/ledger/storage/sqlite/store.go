package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/eventledger/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage/integrity"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store is a SQLite-backed EventStore.
type Store struct {
	sqlDB  *sql.DB
	sealer storage.Sealer
}

var (
	_ storage.EventStore = (*Store)(nil)
	_ storage.Closer     = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithRegistry rejects event types the registry does not know.
func WithRegistry(registry *event.Registry) Option {
	return func(s *Store) { s.sealer.Registry = registry }
}

// WithKeyring signs every chain hash and verifies signatures.
func WithKeyring(keyring *integrity.Keyring) Option {
	return func(s *Store) { s.sealer.Keyring = keyring }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.sealer.Now = now }
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *Store) { s.sealer.NewID = newID }
}

// Open opens the event journal at path, creating parent directories and
// applying migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	dsn := "file:" + cleanPath +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.EventsFS, "events"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	slog.Debug("sqlite event store opened", "path", cleanPath, "signed", store.sealer.Keyring != nil)
	return store, nil
}

// Close closes the underlying SQLite database. It is nil-safe.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
