// Package memory provides the in-process reference event store.
//
// Each stream owns its own writer mutex; there is no lock shared across
// streams. Readers load an immutable snapshot of the stream's slice header
// and never wait on writers.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/louisbranch/eventledger/internal/platform/errors"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage/integrity"
)

// Store is an in-memory EventStore.
type Store struct {
	sealer  storage.Sealer
	streams sync.Map // stream id -> *stream
}

type stream struct {
	mu     sync.Mutex
	events atomic.Pointer[[]event.Event]
}

func (s *stream) load() []event.Event {
	if p := s.events.Load(); p != nil {
		return *p
	}
	return nil
}

// Option configures a Store.
type Option func(*Store)

// WithRegistry rejects event types the registry does not know.
func WithRegistry(registry *event.Registry) Option {
	return func(s *Store) { s.sealer.Registry = registry }
}

// WithKeyring signs every chain hash.
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

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ storage.EventStore = (*Store)(nil)

func (s *Store) lookup(streamID string) (*stream, bool) {
	v, ok := s.streams.Load(streamID)
	if !ok {
		return nil, false
	}
	return v.(*stream), true
}

func (s *Store) handle(streamID string) *stream {
	if st, ok := s.lookup(streamID); ok {
		return st
	}
	v, _ := s.streams.LoadOrStore(streamID, &stream{})
	return v.(*stream)
}

// Append implements storage.EventStore.
func (s *Store) Append(ctx context.Context, streamID string, expectedVersion uint64, payload event.Payload) (event.Event, error) {
	events, err := s.AppendBatch(ctx, streamID, expectedVersion, payload)
	if err != nil {
		return event.Event{}, err
	}
	return events[0], nil
}

// AppendBatch implements storage.EventStore.
func (s *Store) AppendBatch(ctx context.Context, streamID string, expectedVersion uint64, payloads ...event.Payload) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(payloads) == 0 {
		return nil, apperrors.WithMetadata(
			apperrors.CodeEventPayloadInvalid,
			"at least one payload is required",
			map[string]string{apperrors.MetaStreamID: streamID},
		)
	}
	// Serialization happens before any lock is taken.
	pending, err := s.sealer.Prepare(streamID, payloads)
	if err != nil {
		return nil, err
	}
	streamID = pending[0].StreamID

	if expectedVersion != 0 {
		if _, ok := s.lookup(streamID); !ok {
			return nil, storage.ConcurrencyConflict(streamID, expectedVersion, 0)
		}
	}
	st := s.handle(streamID)

	st.mu.Lock()
	defer st.mu.Unlock()

	current := st.load()
	actual := uint64(len(current))
	if actual != expectedVersion {
		return nil, storage.ConcurrencyConflict(streamID, expectedVersion, actual)
	}
	headHash := ""
	if actual > 0 {
		headHash = current[actual-1].ChainHash
	}
	sealed, err := s.sealer.Seal(pending, actual, headHash)
	if err != nil {
		return nil, err
	}

	// Writers only touch indices past every published length, so readers
	// holding an older header never observe the new elements.
	next := append(current, sealed...)
	st.events.Store(&next)
	return event.CloneAll(sealed), nil
}

// ReadStream implements storage.EventStore.
func (s *Store) ReadStream(ctx context.Context, streamID string, fromVersion, toVersion uint64) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	streamID = strings.TrimSpace(streamID)
	if streamID == "" {
		return nil, event.ErrStreamIDRequired
	}
	st, ok := s.lookup(streamID)
	if !ok {
		return []event.Event{}, nil
	}
	return event.CloneAll(window(st.load(), fromVersion, toVersion)), nil
}

// window returns the [from, to] slice of events, with from 0 meaning 1 and
// to 0 meaning the head.
func window(events []event.Event, from, to uint64) []event.Event {
	head := uint64(len(events))
	if from == 0 {
		from = 1
	}
	if to == 0 || to > head {
		to = head
	}
	if from > to {
		return nil
	}
	return events[from-1 : to]
}

// StreamVersion implements storage.EventStore.
func (s *Store) StreamVersion(ctx context.Context, streamID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	streamID = strings.TrimSpace(streamID)
	if streamID == "" {
		return 0, event.ErrStreamIDRequired
	}
	st, ok := s.lookup(streamID)
	if !ok {
		return 0, nil
	}
	return uint64(len(st.load())), nil
}

// VerifyIntegrity implements storage.EventStore.
func (s *Store) VerifyIntegrity(ctx context.Context, streamID string) (storage.VerifyResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.VerifyResult{}, err
	}
	streamID = strings.TrimSpace(streamID)
	if streamID == "" {
		return storage.VerifyResult{}, event.ErrStreamIDRequired
	}
	var events []event.Event
	if st, ok := s.lookup(streamID); ok {
		events = st.load()
	}
	return s.sealer.Verify(streamID, events)
}

// ListStreams implements storage.EventStore.
func (s *Store) ListStreams(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ids []string
	s.streams.Range(func(key, value any) bool {
		if len(value.(*stream).load()) > 0 {
			ids = append(ids, key.(string))
		}
		return true
	})
	sort.Strings(ids)
	return ids, nil
}
