// Package ledger parses ledger command flags and starts the gRPC server.
package ledger

import (
	"context"
	"flag"
	"fmt"
	"strings"

	entrypoint "github.com/louisbranch/eventledger/internal/platform/cmd"
	"github.com/louisbranch/eventledger/internal/platform/logging"
	server "github.com/louisbranch/eventledger/internal/services/ledger/app"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage/integrity"
)

// Config holds ledger command configuration.
type Config struct {
	Port                int    `env:"EVENTLEDGER_PORT" envDefault:"8090"`
	Addr                string `env:"EVENTLEDGER_ADDR"`
	Backend             string `env:"EVENTLEDGER_BACKEND" envDefault:"memory"`
	EventsDBPath        string `env:"EVENTLEDGER_EVENTS_DB_PATH" envDefault:"data/events.db"`
	RegisteredTypesOnly bool   `env:"EVENTLEDGER_REGISTERED_TYPES_ONLY"`
	LogFormat           string `env:"EVENTLEDGER_LOG_FORMAT" envDefault:"text"`
	Verbose             bool   `env:"EVENTLEDGER_VERBOSE"`
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case server.BackendMemory:
	case server.BackendSQLite:
		if strings.TrimSpace(c.EventsDBPath) == "" {
			return fmt.Errorf("EVENTLEDGER_EVENTS_DB_PATH is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch c.LogFormat {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The ledger server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The ledger server listen address (overrides -port)")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "Event store backend: memory or sqlite")
	fs.StringVar(&cfg.EventsDBPath, "events-db", cfg.EventsDBPath, "SQLite event journal path")
	fs.BoolVar(&cfg.RegisteredTypesOnly, "registered-types-only", cfg.RegisteredTypesOnly, "Reject event types outside the built-in registry")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable debug logging")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ListenAddr returns Addr when set, otherwise ":<Port>".
func (c Config) ListenAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	return fmt.Sprintf(":%d", c.Port)
}

// Run starts the ledger gRPC service.
func Run(ctx context.Context, cfg Config) error {
	logging.Setup(cfg.LogFormat, cfg.Verbose)
	keyring, err := integrity.KeyringFromEnv()
	if err != nil {
		return fmt.Errorf("load signing keys: %w", err)
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLedger, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			Addr:                cfg.ListenAddr(),
			Backend:             cfg.Backend,
			EventsDBPath:        cfg.EventsDBPath,
			Keyring:             keyring,
			RegisteredTypesOnly: cfg.RegisteredTypesOnly,
		})
	})
}
