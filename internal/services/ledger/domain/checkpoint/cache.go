package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/eventledger/internal/platform/errors"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/encoding"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/replay"
)

var (
	// ErrSnapshotNotFound indicates no usable snapshot is cached for a stream.
	ErrSnapshotNotFound = apperrors.New(apperrors.CodeNotFound, "snapshot not found")
	// ErrProjectionRequired indicates a missing projection key.
	ErrProjectionRequired = errors.New("projection key is required")
)

// Entry is the cached form of a snapshot. Projection names the fold that
// produced StateJSON; entries never cross projections.
type Entry struct {
	StreamID   string
	Projection string
	Version    uint64
	ChainHash  string
	StateJSON  []byte
	SavedAt    time.Time
}

// Cache stores one entry per stream and projection.
type Cache interface {
	Put(ctx context.Context, entry Entry) error
	Get(ctx context.Context, streamID, projection string) (Entry, error)
	Invalidate(ctx context.Context, streamID, projection string) error
}

// ProjectionKey names a fold by the caller's projection name and the
// unknown-type policy it replays with. The same handlers folded under
// SkipUnknown and FailUnknown can diverge, so they never share entries.
func ProjectionKey(name string, policy replay.UnknownPolicy) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return name + "#" + policy.String()
}

// Save stores snap in cache as canonical JSON so later mutation of the
// caller's state cannot reach the cached copy.
func Save[S any](ctx context.Context, cache Cache, projection string, snap replay.Snapshot[S]) error {
	if cache == nil {
		return fmt.Errorf("checkpoint cache is required")
	}
	projection = strings.TrimSpace(projection)
	if projection == "" {
		return ErrProjectionRequired
	}
	streamID := strings.TrimSpace(snap.StreamID)
	if streamID == "" {
		return event.ErrStreamIDRequired
	}
	if snap.Version == 0 {
		return nil
	}
	state, err := encoding.CanonicalJSON(snap.State)
	if err != nil {
		return fmt.Errorf("encode snapshot state: %w", err)
	}
	return cache.Put(ctx, Entry{
		StreamID:   streamID,
		Projection: projection,
		Version:    snap.Version,
		ChainHash:  snap.ChainHash,
		StateJSON:  state,
	})
}

// Load returns the projection's cached snapshot when its version does not
// exceed currentVersion. A snapshot ahead of the stream is invalidated and
// reported as ErrSnapshotNotFound, as is an entry saved for another projection.
func Load[S any](ctx context.Context, cache Cache, projection, streamID string, currentVersion uint64) (replay.Snapshot[S], error) {
	var snap replay.Snapshot[S]
	if cache == nil {
		return snap, fmt.Errorf("checkpoint cache is required")
	}
	projection = strings.TrimSpace(projection)
	if projection == "" {
		return snap, ErrProjectionRequired
	}
	streamID = strings.TrimSpace(streamID)
	entry, err := cache.Get(ctx, streamID, projection)
	if err != nil {
		return snap, err
	}
	if entry.Projection != projection {
		return snap, ErrSnapshotNotFound
	}
	if entry.Version > currentVersion {
		if err := cache.Invalidate(ctx, streamID, projection); err != nil {
			return snap, err
		}
		return snap, ErrSnapshotNotFound
	}
	if err := json.Unmarshal(entry.StateJSON, &snap.State); err != nil {
		if err := cache.Invalidate(ctx, streamID, projection); err != nil {
			return snap, err
		}
		return snap, ErrSnapshotNotFound
	}
	snap.StreamID = entry.StreamID
	snap.Version = entry.Version
	snap.ChainHash = entry.ChainHash
	return snap, nil
}
