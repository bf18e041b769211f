package ledger

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8090 {
		t.Fatalf("expected default port 8090, got %d", cfg.Port)
	}
	if cfg.Backend != "memory" {
		t.Fatalf("expected memory backend, got %q", cfg.Backend)
	}
	if cfg.EventsDBPath != "data/events.db" {
		t.Fatalf("expected default db path, got %q", cfg.EventsDBPath)
	}
	if cfg.ListenAddr() != ":8090" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr())
	}
}

func TestParseConfigOverrides(t *testing.T) {
	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{
		"-port", "9001",
		"-addr", "127.0.0.1:9999",
		"-backend", "sqlite",
		"-events-db", "/tmp/ledger.db",
		"-log-format", "json",
		"-v",
	})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9001 || cfg.Addr != "127.0.0.1:9999" {
		t.Fatalf("unexpected listen config: %+v", cfg)
	}
	if cfg.ListenAddr() != "127.0.0.1:9999" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr())
	}
	if cfg.Backend != "sqlite" || cfg.EventsDBPath != "/tmp/ledger.db" {
		t.Fatalf("unexpected storage config: %+v", cfg)
	}
	if cfg.LogFormat != "json" || !cfg.Verbose {
		t.Fatalf("unexpected logging config: %+v", cfg)
	}
}

func TestParseConfigFromEnv(t *testing.T) {
	t.Setenv("EVENTLEDGER_BACKEND", "sqlite")
	t.Setenv("EVENTLEDGER_REGISTERED_TYPES_ONLY", "true")
	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Backend != "sqlite" || !cfg.RegisteredTypesOnly {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "backend", args: []string{"-backend", "etcd"}},
		{name: "sqlite without path", args: []string{"-backend", "sqlite", "-events-db", ""}},
		{name: "log format", args: []string{"-log-format", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
			if _, err := ParseConfig(fs, tt.args); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
