// Package maintenance verifies, validates, and replays ledger streams offline
// or against a running ledger server.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/louisbranch/eventledger/internal/platform/config"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/business"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/checkpoint"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/replay"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Report modes.
const (
	modeVerify   = "verify"
	modeValidate = "validate"
	modeReplay   = "replay-business"
)

// Config holds maintenance command configuration.
type Config struct {
	StreamID       string
	StreamIDs      string
	All            bool
	EventsDBPath   string        `env:"EVENTLEDGER_EVENTS_DB_PATH" envDefault:"data/events.db"`
	Addr           string        `env:"EVENTLEDGER_MAINTENANCE_ADDR"`
	Timeout        time.Duration `env:"EVENTLEDGER_MAINTENANCE_TIMEOUT" envDefault:"10m"`
	UntilVersion   uint64
	Validate       bool
	ReplayBusiness bool
	Concurrency    int
	WarningsCap    int
	JSONOutput     bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Concurrency: defaultConcurrency, WarningsCap: 25}
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.StreamID, "stream-id", "", "stream ID to check")
	fs.StringVar(&cfg.StreamIDs, "stream-ids", "", "comma-separated stream IDs to check")
	fs.BoolVar(&cfg.All, "all", false, "check every stream in the journal")
	fs.StringVar(&cfg.EventsDBPath, "events-db-path", cfg.EventsDBPath, "path to the events sqlite database (default: EVENTLEDGER_EVENTS_DB_PATH or data/events.db)")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "ledger server address; when set the journal is read over gRPC instead of from -events-db-path")
	fs.Uint64Var(&cfg.UntilVersion, "until-version", 0, "replay or validate up to this version (0 = head)")
	fs.BoolVar(&cfg.Validate, "validate", false, "validate stored payloads against the event registry")
	fs.BoolVar(&cfg.ReplayBusiness, "replay-business", false, "print the business projection of each stream")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "streams checked in parallel")
	fs.IntVar(&cfg.WarningsCap, "warnings-cap", cfg.WarningsCap, "max warnings to print (0 = no limit)")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) mode() string {
	switch {
	case c.ReplayBusiness:
		return modeReplay
	case c.Validate:
		return modeValidate
	default:
		return modeVerify
	}
}

func (c Config) check() error {
	if c.Validate && c.ReplayBusiness {
		return errors.New("-validate cannot be combined with -replay-business")
	}
	if c.Concurrency <= 0 {
		return errors.New("-concurrency must be > 0")
	}
	if c.WarningsCap < 0 {
		return errors.New("-warnings-cap must be >= 0")
	}
	if c.All && (c.StreamID != "" || c.StreamIDs != "") {
		return errors.New("-all cannot be combined with -stream-id or -stream-ids")
	}
	if !c.All {
		if _, err := resolveStreamIDs(c.StreamID, c.StreamIDs); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the maintenance command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if err := cfg.check(); err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	return runWithDeps(ctx, cfg, store, out, errOut)
}

// runWithDeps contains the core maintenance logic with an injectable store.
// It owns the lifecycle of the store, closing it on return.
func runWithDeps(ctx context.Context, cfg Config, store closableEventStore, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(errOut, "Error: close event store: %v\n", err)
		}
	}()

	var ids []string
	var err error
	if cfg.All {
		ids, err = store.ListStreams(ctx)
		if err != nil {
			return fmt.Errorf("list streams: %w", err)
		}
	} else {
		ids, err = resolveStreamIDs(cfg.StreamID, cfg.StreamIDs)
		if err != nil {
			return err
		}
	}

	registry, err := buildEventRegistry()
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	options := runOptions{
		Mode:         cfg.mode(),
		UntilVersion: cfg.UntilVersion,
		WarningsCap:  cfg.WarningsCap,
		Registry:     registry,
		Snapshots:    checkpoint.NewMemory(),
	}

	results := make([]runResult, len(ids))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.Concurrency)
	for i, id := range ids {
		group.Go(func() error {
			results[i] = runStream(groupCtx, store, id, options)
			return groupCtx.Err()
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, result := range results {
		if cfg.JSONOutput {
			outputJSON(out, errOut, result)
		} else {
			prefix := ""
			if len(ids) > 1 {
				prefix = fmt.Sprintf("[%s] ", result.StreamID)
			}
			printResult(out, errOut, result, prefix)
		}
		if result.ExitCode != 0 {
			failed++
		}
	}
	if !cfg.JSONOutput && len(ids) > 1 {
		fmt.Fprintf(out, "Checked %d streams, %d failed\n", len(ids), failed)
	}
	if failed > 0 {
		return errors.New("maintenance failed")
	}
	return nil
}

type runOptions struct {
	Mode         string
	UntilVersion uint64
	WarningsCap  int
	Registry     *event.Registry
	Snapshots    checkpoint.Cache
}

type verifyReport struct {
	Verified        uint64 `json:"verified"`
	HeadHash        string `json:"head_hash,omitempty"`
	BrokenAtVersion uint64 `json:"broken_at_version,omitempty"`
}

type validateReport struct {
	LastVersion   uint64 `json:"last_version"`
	TotalEvents   int    `json:"total_events"`
	InvalidEvents int    `json:"invalid_events"`
}

type replayReport struct {
	Version      uint64         `json:"version"`
	Applied      int            `json:"applied"`
	FromSnapshot bool           `json:"from_snapshot,omitempty"`
	State        business.State `json:"state"`
}

type runResult struct {
	StreamID      string          `json:"stream_id"`
	Mode          string          `json:"mode"`
	Report        json.RawMessage `json:"report,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
	WarningsTotal int             `json:"warnings_total,omitempty"`
	Error         string          `json:"error,omitempty"`
	ExitCode      int             `json:"-"`
}

func runStream(ctx context.Context, store storage.EventStore, streamID string, options runOptions) runResult {
	result := runResult{StreamID: streamID, Mode: options.Mode}
	var (
		report any
		err    error
	)
	switch options.Mode {
	case modeValidate:
		var warnings []string
		var scan validateReport
		scan, warnings, err = validateStream(ctx, store, options.Registry, streamID, options.UntilVersion)
		result.Warnings, result.WarningsTotal = capWarnings(warnings, options.WarningsCap)
		report = scan
		if err == nil && scan.InvalidEvents > 0 {
			result.ExitCode = 1
		}
	case modeReplay:
		report, err = replayBusiness(ctx, store, options.Snapshots, streamID, options.UntilVersion)
	default:
		var verified verifyReport
		verified, err = verifyStream(ctx, store, streamID)
		report = verified
		if err != nil {
			// The partial report still names the broken version.
			err = fmt.Errorf("verify: %w", err)
			if encoded, encodeErr := json.Marshal(verified); encodeErr == nil {
				result.Report = encoded
			}
			result.Error = err.Error()
			result.ExitCode = 1
			return result
		}
	}
	if err != nil {
		result.Error = fmt.Sprintf("%s: %v", options.Mode, err)
		result.ExitCode = 1
		return result
	}
	encoded, err := json.Marshal(report)
	if err != nil {
		result.Error = fmt.Sprintf("encode report: %v", err)
		result.ExitCode = 1
		return result
	}
	result.Report = encoded
	return result
}

func verifyStream(ctx context.Context, store storage.EventStore, streamID string) (verifyReport, error) {
	result, err := store.VerifyIntegrity(ctx, streamID)
	if err != nil {
		report := verifyReport{}
		if version, ok := storage.ViolationVersion(err); ok {
			report.BrokenAtVersion = version
		}
		return report, err
	}
	return verifyReport{Verified: result.Verified, HeadHash: result.HeadHash}, nil
}

func validateStream(ctx context.Context, reader storage.EventReader, registry *event.Registry, streamID string, untilVersion uint64) (validateReport, []string, error) {
	events, err := reader.ReadStream(ctx, streamID, 0, untilVersion)
	if err != nil {
		return validateReport{}, nil, err
	}
	report := validateReport{TotalEvents: len(events)}
	var warnings []string
	for _, evt := range events {
		report.LastVersion = evt.Version
		if _, err := registry.ValidateForAppend(evt); err != nil {
			report.InvalidEvents++
			warnings = append(warnings, fmt.Sprintf("version %d (%s): %v", evt.Version, evt.Type, err))
		}
	}
	return report, warnings, nil
}

func replayBusiness(ctx context.Context, reader storage.EventReader, snapshots checkpoint.Cache, streamID string, untilVersion uint64) (replayReport, error) {
	result, err := checkpoint.Project(ctx, reader, snapshots, business.Owner, streamID, business.Handlers, replay.UntilVersion(untilVersion))
	if err != nil {
		return replayReport{}, err
	}
	return replayReport{
		Version:      result.Version,
		Applied:      result.Applied,
		FromSnapshot: result.FromSnapshot,
		State:        result.State,
	}, nil
}

func resolveStreamIDs(singleID, list string) ([]string, error) {
	if singleID == "" && list == "" {
		return nil, fmt.Errorf("-stream-id, -stream-ids, or -all is required")
	}
	if singleID != "" && list != "" {
		return nil, fmt.Errorf("-stream-id cannot be combined with -stream-ids")
	}
	if singleID != "" {
		return []string{singleID}, nil
	}
	ids := splitCSV(list)
	if len(ids) == 0 {
		return nil, fmt.Errorf("-stream-ids must contain at least one stream id")
	}
	return ids, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	output := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		output = append(output, trimmed)
	}
	return output
}

func capWarnings(warnings []string, limit int) ([]string, int) {
	total := len(warnings)
	if limit == 0 || total <= limit {
		return warnings, total
	}
	return warnings[:limit], total
}

func outputJSON(out io.Writer, errOut io.Writer, result runResult) {
	encoded, err := json.Marshal(result)
	if err != nil {
		fmt.Fprintf(errOut, "Error: encode report: %v\n", err)
		return
	}
	fmt.Fprintln(out, string(encoded))
}

func printResult(out io.Writer, errOut io.Writer, result runResult, prefix string) {
	if result.Error != "" {
		fmt.Fprintf(errOut, "%sError: %s\n", prefix, result.Error)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(errOut, "%sWarning: %s\n", prefix, warning)
	}
	if result.WarningsTotal > len(result.Warnings) {
		fmt.Fprintf(errOut, "%sWarning: %d more warnings suppressed\n", prefix, result.WarningsTotal-len(result.Warnings))
	}
	if len(result.Report) == 0 {
		return
	}

	switch result.Mode {
	case modeValidate:
		var report validateReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		fmt.Fprintf(out, "%sValidated stream %s through version %d (%d invalid, %d total)\n", prefix, result.StreamID, report.LastVersion, report.InvalidEvents, report.TotalEvents)
	case modeReplay:
		var report replayReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		fmt.Fprintf(out, "%sReplayed stream %s through version %d: name=%q deleted=%t renames=%d\n", prefix, result.StreamID, report.Version, report.State.Name, report.State.Deleted, report.State.Renames)
	default:
		var report verifyReport
		if err := json.Unmarshal(result.Report, &report); err != nil {
			fmt.Fprintf(errOut, "%sError: decode report: %v\n", prefix, err)
			return
		}
		if report.BrokenAtVersion > 0 {
			fmt.Fprintf(out, "%sStream %s is broken at version %d\n", prefix, result.StreamID, report.BrokenAtVersion)
			return
		}
		if result.Error != "" {
			return
		}
		fmt.Fprintf(out, "%sVerified %d events for stream %s (head %s)\n", prefix, report.Verified, result.StreamID, report.HeadHash)
	}
}
