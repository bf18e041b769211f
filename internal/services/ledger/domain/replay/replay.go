package replay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/eventledger/internal/platform/errors"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
)

const defaultPageSize = 200

var (
	// ErrReaderRequired indicates a missing event reader.
	ErrReaderRequired = errors.New("event reader is required")
	// ErrUnhandledEventType indicates an event with no registered handler.
	ErrUnhandledEventType = apperrors.New(apperrors.CodeProjectionUnhandledType, "no handler for event type")
	// ErrFoldFailed indicates a handler rejected an event.
	ErrFoldFailed = apperrors.New(apperrors.CodeProjectionFoldFailed, "projection fold failed")
	// ErrVersionGap indicates the reader returned a non-consecutive version.
	ErrVersionGap = apperrors.New(apperrors.CodeStreamIntegrity, "event sequence gap")
)

// Reader lists events for replay.
type Reader interface {
	ReadStream(ctx context.Context, streamID string, fromVersion, toVersion uint64) ([]event.Event, error)
}

// UnknownPolicy selects what happens when no handler matches an event type.
type UnknownPolicy int

const (
	// FailUnknown stops replay with ErrUnhandledEventType.
	FailUnknown UnknownPolicy = iota
	// SkipUnknown ignores the event and continues.
	SkipUnknown
)

func (p UnknownPolicy) String() string {
	switch p {
	case FailUnknown:
		return "fail"
	case SkipUnknown:
		return "skip"
	default:
		return "policy(" + strconv.Itoa(int(p)) + ")"
	}
}

// Snapshot pins state at a version together with the chain hash of the event
// at that version.
type Snapshot[S any] struct {
	StreamID  string
	Version   uint64
	ChainHash string
	State     S
}

// Result captures replay outcomes.
type Result[S any] struct {
	State     S
	Version   uint64
	ChainHash string
	Applied   int
	Skipped   int
	// FromSnapshot reports whether a supplied snapshot was used as the start.
	FromSnapshot bool
}

type settings struct {
	seed     any
	snapshot any
	policy   UnknownPolicy
	until    uint64
	pageSize int
}

// Option configures replay behavior.
type Option func(*settings)

// WithSeed sets the state folded into when no snapshot applies.
func WithSeed(seed any) Option {
	return func(s *settings) { s.seed = seed }
}

// FromSnapshot starts replay after snap.Version when the snapshot is still valid.
func FromSnapshot[S any](snap Snapshot[S]) Option {
	return func(s *settings) { s.snapshot = snap }
}

// WithUnknownPolicy selects the unknown-type policy for this call.
func WithUnknownPolicy(policy UnknownPolicy) Option {
	return func(s *settings) { s.policy = policy }
}

// UntilVersion stops replay after version v. Zero means the stream head.
func UntilVersion(v uint64) Option {
	return func(s *settings) { s.until = v }
}

// WithPageSize sets how many events are read per call to the reader.
func WithPageSize(n int) Option {
	return func(s *settings) { s.pageSize = n }
}

// PolicyOf returns the unknown-type policy opts select.
func PolicyOf(opts ...Option) UnknownPolicy {
	var cfg settings
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg.policy
}

// Project folds the stream into state.
func Project[S any](ctx context.Context, reader Reader, streamID string, handlers Handlers[S], opts ...Option) (S, error) {
	result, err := Replay(ctx, reader, streamID, handlers, opts...)
	return result.State, err
}

// TakeSnapshot replays the stream and pins the resulting state. The engine
// keeps no copy; callers decide where to cache it.
func TakeSnapshot[S any](ctx context.Context, reader Reader, streamID string, handlers Handlers[S], opts ...Option) (Snapshot[S], error) {
	result, err := Replay(ctx, reader, streamID, handlers, opts...)
	if err != nil {
		return Snapshot[S]{}, err
	}
	return Snapshot[S]{
		StreamID:  strings.TrimSpace(streamID),
		Version:   result.Version,
		ChainHash: result.ChainHash,
		State:     result.State,
	}, nil
}

// Replay folds the stream and reports how it got there.
func Replay[S any](ctx context.Context, reader Reader, streamID string, handlers Handlers[S], opts ...Option) (Result[S], error) {
	var result Result[S]
	if reader == nil {
		return result, ErrReaderRequired
	}
	streamID = strings.TrimSpace(streamID)
	if streamID == "" {
		return result, event.ErrStreamIDRequired
	}

	cfg := settings{pageSize: defaultPageSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.pageSize <= 0 {
		cfg.pageSize = defaultPageSize
	}
	if cfg.seed != nil {
		seed, ok := cfg.seed.(S)
		if !ok {
			return result, fmt.Errorf("seed has type %T, want %T", cfg.seed, result.State)
		}
		result.State = seed
	}
	if cfg.snapshot != nil {
		snap, ok := cfg.snapshot.(Snapshot[S])
		if !ok {
			return result, fmt.Errorf("snapshot has type %T, want %T", cfg.snapshot, Snapshot[S]{})
		}
		usable, err := snapshotUsable(ctx, reader, streamID, snap, cfg.until)
		if err != nil {
			return result, err
		}
		if usable {
			result.State = snap.State
			result.Version = snap.Version
			result.ChainHash = snap.ChainHash
			result.FromSnapshot = true
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		from := result.Version + 1
		to := from + uint64(cfg.pageSize) - 1
		if cfg.until > 0 {
			if from > cfg.until {
				return result, nil
			}
			if to > cfg.until {
				to = cfg.until
			}
		}
		events, err := reader.ReadStream(ctx, streamID, from, to)
		if err != nil {
			return result, err
		}
		if len(events) == 0 {
			return result, nil
		}
		for _, evt := range events {
			if err := apply(&result, handlers, cfg.policy, streamID, evt); err != nil {
				return result, err
			}
		}
		if uint64(len(events)) < to-from+1 {
			return result, nil
		}
	}
}

func apply[S any](result *Result[S], handlers Handlers[S], policy UnknownPolicy, streamID string, evt event.Event) error {
	expected := result.Version + 1
	meta := map[string]string{
		apperrors.MetaStreamID:  streamID,
		apperrors.MetaVersion:   strconv.FormatUint(evt.Version, 10),
		apperrors.MetaEventType: string(evt.Type),
	}
	if evt.Version != expected {
		return apperrors.WithMetadata(
			apperrors.CodeStreamIntegrity,
			fmt.Sprintf("event sequence gap: expected %d got %d", expected, evt.Version),
			meta,
		)
	}

	handler, ok := handlers[evt.Type]
	switch {
	case ok && handler != nil:
		next, err := handler(result.State, evt)
		if err != nil {
			return apperrors.WrapWithMetadata(
				apperrors.CodeProjectionFoldFailed,
				fmt.Sprintf("fold %s at version %d: %v", evt.Type, evt.Version, err),
				meta,
				err,
			)
		}
		result.State = next
		result.Applied++
	case policy == SkipUnknown:
		result.Skipped++
	default:
		return apperrors.WithMetadata(
			apperrors.CodeProjectionUnhandledType,
			fmt.Sprintf("no handler for %s at version %d", evt.Type, evt.Version),
			meta,
		)
	}
	result.Version = evt.Version
	result.ChainHash = evt.ChainHash
	return nil
}

// snapshotUsable reports whether snap still describes a prefix of the stream.
func snapshotUsable[S any](ctx context.Context, reader Reader, streamID string, snap Snapshot[S], until uint64) (bool, error) {
	if snap.Version == 0 || strings.TrimSpace(snap.StreamID) != streamID {
		return false, nil
	}
	if until > 0 && snap.Version > until {
		return false, nil
	}
	events, err := reader.ReadStream(ctx, streamID, snap.Version, snap.Version)
	if err != nil {
		return false, err
	}
	if len(events) != 1 || events[0].Version != snap.Version {
		return false, nil
	}
	return events[0].ChainHash == snap.ChainHash, nil
}
