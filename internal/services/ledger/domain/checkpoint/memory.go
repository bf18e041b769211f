package checkpoint

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
)

type memoryKey struct {
	streamID   string
	projection string
}

// Memory stores snapshot entries in memory.
type Memory struct {
	mu      sync.Mutex
	entries map[memoryKey]Entry
	now     func() time.Time
}

// NewMemory creates a new in-memory snapshot cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[memoryKey]Entry), now: time.Now}
}

// Put stores entry, replacing any older entry for the same stream and
// projection.
func (m *Memory) Put(ctx context.Context, entry Entry) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if m == nil {
		return errors.New("checkpoint cache is required")
	}
	entry.StreamID = strings.TrimSpace(entry.StreamID)
	if entry.StreamID == "" {
		return event.ErrStreamIDRequired
	}
	entry.Projection = strings.TrimSpace(entry.Projection)
	if entry.Projection == "" {
		return ErrProjectionRequired
	}
	entry.StateJSON = append([]byte(nil), entry.StateJSON...)
	entry.SavedAt = m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[memoryKey]Entry)
	}
	m.entries[memoryKey{entry.StreamID, entry.Projection}] = entry
	return nil
}

// Get retrieves the entry for streamID under projection.
func (m *Memory) Get(ctx context.Context, streamID, projection string) (Entry, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return Entry{}, err
		}
	}
	if m == nil {
		return Entry{}, errors.New("checkpoint cache is required")
	}
	streamID = strings.TrimSpace(streamID)
	if streamID == "" {
		return Entry{}, event.ErrStreamIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[memoryKey{streamID, strings.TrimSpace(projection)}]
	if !ok {
		return Entry{}, ErrSnapshotNotFound
	}
	entry.StateJSON = append([]byte(nil), entry.StateJSON...)
	return entry, nil
}

// Invalidate drops the entry for streamID under projection.
func (m *Memory) Invalidate(ctx context.Context, streamID, projection string) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if m == nil {
		return errors.New("checkpoint cache is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memoryKey{strings.TrimSpace(streamID), strings.TrimSpace(projection)})
	return nil
}

// Len reports how many entries are cached.
func (m *Memory) Len() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
