package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/eventledger/internal/platform/errors"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage/integrity"
)

type noted struct {
	Text string `json:"text"`
}

func (noted) EventType() event.Type { return "test.noted" }

type unserializable struct {
	Fn func() `json:"fn"`
}

func (unserializable) EventType() event.Type { return "test.noted" }

func fixedClock() func() time.Time {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	return func() time.Time { return ts }
}

func tamper(t *testing.T, s *Store, streamID string, version uint64, mutate func(*event.Event)) {
	t.Helper()
	st, ok := s.lookup(streamID)
	if !ok {
		t.Fatalf("stream %s not found", streamID)
	}
	events := st.load()
	mutate(&events[version-1])
}

func TestAppendReadScenario(t *testing.T) {
	ctx := context.Background()
	s := New(WithClock(fixedClock()))

	a, err := s.Append(ctx, "S1", 0, noted{Text: "A"})
	if err != nil {
		t.Fatalf("append A: %v", err)
	}
	if a.Version != 1 {
		t.Fatalf("A version = %d, want 1", a.Version)
	}
	b, err := s.Append(ctx, "S1", 1, noted{Text: "B"})
	if err != nil {
		t.Fatalf("append B: %v", err)
	}
	if b.Version != 2 {
		t.Fatalf("B version = %d, want 2", b.Version)
	}

	events, err := s.ReadStream(ctx, "S1", 0, 0)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if len(events) != 2 || events[0].ID != a.ID || events[1].ID != b.ID {
		t.Fatalf("read stream = %+v", events)
	}
	version, err := s.StreamVersion(ctx, "S1")
	if err != nil {
		t.Fatalf("stream version: %v", err)
	}
	if version != 2 {
		t.Fatalf("stream version = %d, want 2", version)
	}

	_, err = s.Append(ctx, "S1", 1, noted{Text: "C"})
	if !errors.Is(err, storage.ErrConcurrencyConflict) {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}
	meta := apperrors.GetMetadata(err)
	if meta["ExpectedVersion"] != "1" || meta["ActualVersion"] != "2" {
		t.Fatalf("conflict metadata = %v", meta)
	}
	if !storage.IsRetryable(err) {
		t.Fatal("conflict should be retryable")
	}

	after, _ := s.ReadStream(ctx, "S1", 0, 0)
	if len(after) != 2 {
		t.Fatalf("conflict changed the stream: %d events", len(after))
	}
}

func TestAppendAssignsEnvelope(t *testing.T) {
	ctx := context.Background()
	s := New(WithClock(fixedClock()))
	first, err := s.Append(ctx, " S1 ", 0, noted{Text: "A"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.StreamID != "S1" {
		t.Fatalf("stream id = %q", first.StreamID)
	}
	if first.ID == "" {
		t.Fatal("expected generated id")
	}
	if first.PrevHash != integrity.GenesisHash {
		t.Fatalf("first prev hash = %s", first.PrevHash)
	}
	if first.Timestamp.Nanosecond()%int(time.Millisecond) != 0 {
		t.Fatalf("timestamp not truncated to milliseconds: %v", first.Timestamp)
	}
	second, _ := s.Append(ctx, "S1", 1, noted{Text: "B"})
	if second.PrevHash != first.ChainHash {
		t.Fatal("second event should chain from first")
	}
}

func TestAppendOnMissingStreamWithNonZeroExpected(t *testing.T) {
	s := New()
	_, err := s.Append(context.Background(), "ghost", 3, noted{Text: "A"})
	if !errors.Is(err, storage.ErrConcurrencyConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	streams, _ := s.ListStreams(context.Background())
	if len(streams) != 0 {
		t.Fatalf("conflict should not create streams: %v", streams)
	}
}

func TestAppendValidation(t *testing.T) {
	ctx := context.Background()
	registry := event.NewRegistry()
	registry.MustRegister(event.Definition{Type: "test.noted", Owner: "test"})
	s := New(WithRegistry(registry))

	tests := []struct {
		name     string
		streamID string
		payload  event.Payload
		want     error
	}{
		{name: "blank stream", streamID: " ", payload: noted{}, want: event.ErrStreamIDRequired},
		{name: "unserializable", streamID: "S1", payload: unserializable{Fn: func() {}}, want: event.ErrPayloadInvalid},
		{name: "unregistered", streamID: "S1", payload: event.Raw{Type: "test.other", Data: []byte(`{}`)}, want: event.ErrTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Append(ctx, tt.streamID, 0, tt.payload)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !storage.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if v, _ := s.StreamVersion(ctx, "S1"); v != 0 {
		t.Fatalf("failed appends changed stream version to %d", v)
	}
}

func TestAppendBatchAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.AppendBatch(ctx, "S1", 0, noted{Text: "A"}, unserializable{Fn: func() {}})
	if !errors.Is(err, event.ErrPayloadInvalid) {
		t.Fatalf("expected invalid payload, got %v", err)
	}
	if v, _ := s.StreamVersion(ctx, "S1"); v != 0 {
		t.Fatalf("partial batch recorded: version %d", v)
	}

	events, err := s.AppendBatch(ctx, "S1", 0, noted{Text: "A"}, noted{Text: "B"}, noted{Text: "C"})
	if err != nil {
		t.Fatalf("append batch: %v", err)
	}
	for i, evt := range events {
		if evt.Version != uint64(i+1) {
			t.Fatalf("event %d version = %d", i, evt.Version)
		}
	}
	if events[1].PrevHash != events[0].ChainHash || events[2].PrevHash != events[1].ChainHash {
		t.Fatal("batch events must be chained")
	}
	if _, err := s.AppendBatch(ctx, "S1", 3); err == nil {
		t.Fatal("expected empty batch error")
	}
}

func TestReadStreamWindows(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := 0; i < 5; i++ {
		if _, err := s.Append(ctx, "S1", uint64(i), noted{Text: fmt.Sprint(i)}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	tests := []struct {
		name     string
		stream   string
		from, to uint64
		want     []uint64
	}{
		{name: "all", stream: "S1", want: []uint64{1, 2, 3, 4, 5}},
		{name: "from", stream: "S1", from: 4, want: []uint64{4, 5}},
		{name: "bounded", stream: "S1", from: 2, to: 3, want: []uint64{2, 3}},
		{name: "to past head", stream: "S1", from: 5, to: 99, want: []uint64{5}},
		{name: "from past head", stream: "S1", from: 6},
		{name: "reversed", stream: "S1", from: 4, to: 2},
		{name: "unknown stream", stream: "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := s.ReadStream(ctx, tt.stream, tt.from, tt.to)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(events) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(events), len(tt.want))
			}
			for i, evt := range events {
				if evt.Version != tt.want[i] {
					t.Fatalf("event %d version = %d, want %d", i, evt.Version, tt.want[i])
				}
			}
		})
	}
}

func TestReadStreamReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Append(ctx, "S1", 0, noted{Text: "A"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	events, _ := s.ReadStream(ctx, "S1", 0, 0)
	events[0].PayloadJSON[0] = 'X'
	events[0].Version = 99

	if _, err := s.VerifyIntegrity(ctx, "S1"); err != nil {
		t.Fatalf("caller mutation leaked into store: %v", err)
	}
}

func TestVerifyIntegrity(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := 0; i < 3; i++ {
		if _, err := s.Append(ctx, "S1", uint64(i), noted{Text: fmt.Sprint(i)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	result, err := s.VerifyIntegrity(ctx, "S1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Verified != 3 || result.StreamID != "S1" {
		t.Fatalf("result = %+v", result)
	}

	tamper(t, s, "S1", 2, func(evt *event.Event) {
		evt.PayloadJSON = []byte(`{"text":"forged"}`)
	})
	_, err = s.VerifyIntegrity(ctx, "S1")
	if !errors.Is(err, storage.ErrIntegrityViolation) {
		t.Fatalf("expected integrity violation, got %v", err)
	}
	if version, ok := storage.ViolationVersion(err); !ok || version != 2 {
		t.Fatalf("violation version = %d (ok=%v), want 2", version, ok)
	}
	if apperrors.GetMetadata(err)["Version"] != "2" {
		t.Fatalf("metadata = %v", apperrors.GetMetadata(err))
	}
}

func TestVerifyIntegrityDetectsByteLevelTampering(t *testing.T) {
	tests := []struct {
		name    string
		version uint64
		mutate  func([]byte) []byte
	}{
		{
			name:    "escape hex case flipped",
			version: 1,
			mutate: func(b []byte) []byte {
				return bytes.Replace(b, []byte(`\u001b`), []byte(`\u001B`), 1)
			},
		},
		{
			name:    "whitespace inserted",
			version: 2,
			mutate:  func([]byte) []byte { return []byte(`{ "text" : "A" }`) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := New()
			first, err := s.Append(ctx, "S1", 0, noted{Text: "esc\x1bape"})
			if err != nil {
				t.Fatalf("append: %v", err)
			}
			if string(first.PayloadJSON) != `{"text":"esc\u001bape"}` {
				t.Fatalf("payload = %s", first.PayloadJSON)
			}
			if _, err := s.Append(ctx, "S1", 1, noted{Text: "A"}); err != nil {
				t.Fatalf("append: %v", err)
			}

			tamper(t, s, "S1", tt.version, func(evt *event.Event) {
				evt.PayloadJSON = tt.mutate(bytes.Clone(evt.PayloadJSON))
			})
			_, err = s.VerifyIntegrity(ctx, "S1")
			if !errors.Is(err, storage.ErrIntegrityViolation) {
				t.Fatalf("expected integrity violation, got %v", err)
			}
			if version, ok := storage.ViolationVersion(err); !ok || version != tt.version {
				t.Fatalf("violation version = %d (ok=%v), want %d", version, ok, tt.version)
			}
		})
	}
}

func TestReadsDuringAppendsSeeWholeEvents(t *testing.T) {
	ctx := context.Background()
	s := New()
	const appends = 200

	done := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				events, err := s.ReadStream(ctx, "S", 0, 0)
				if err != nil {
					t.Errorf("read: %v", err)
					return
				}
				for i, evt := range events {
					if evt.Version != uint64(i+1) || evt.ChainHash == "" || len(evt.PayloadJSON) == 0 {
						t.Errorf("partial event at index %d: %+v", i, evt)
						return
					}
				}
				if _, err := s.VerifyIntegrity(ctx, "S"); err != nil {
					t.Errorf("verify during appends: %v", err)
					return
				}
			}
		}()
	}

	for v := uint64(0); v < appends; v++ {
		if _, err := s.Append(ctx, "S", v, noted{Text: fmt.Sprint(v)}); err != nil {
			t.Fatalf("append %d: %v", v, err)
		}
	}
	close(done)
	wg.Wait()

	result, err := s.VerifyIntegrity(ctx, "S")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Verified != appends {
		t.Fatalf("verified = %d, want %d", result.Verified, appends)
	}
}

func TestVerifyIntegrityUnknownStream(t *testing.T) {
	result, err := New().VerifyIntegrity(context.Background(), "nope")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Verified != 0 || result.HeadHash != integrity.GenesisHash {
		t.Fatalf("result = %+v", result)
	}
}

func TestVerifyIntegrityWithKeyring(t *testing.T) {
	ctx := context.Background()
	ring, err := integrity.NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	s := New(WithKeyring(ring))
	evt, err := s.Append(ctx, "S1", 0, noted{Text: "A"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if evt.Signature == "" || evt.SignatureKeyID != "v1" {
		t.Fatalf("expected signature, got %+v", evt)
	}
	if _, err := s.VerifyIntegrity(ctx, "S1"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	tamper(t, s, "S1", 1, func(evt *event.Event) { evt.Signature = "00" })
	if _, err := s.VerifyIntegrity(ctx, "S1"); !errors.Is(err, storage.ErrIntegrityViolation) {
		t.Fatalf("expected integrity violation, got %v", err)
	}
}

func TestConcurrentAppendsSameVersionExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	s := New()
	const writers = 32

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := s.Append(ctx, "S1", 0, noted{Text: fmt.Sprint(i)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, storage.ErrConcurrencyConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if successes != 1 || conflicts != writers-1 {
		t.Fatalf("successes=%d conflicts=%d", successes, conflicts)
	}
}

func TestConcurrentAppendsAcrossStreams(t *testing.T) {
	ctx := context.Background()
	s := New()
	const streams, perStream = 8, 25

	var wg sync.WaitGroup
	for i := 0; i < streams; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for v := uint64(0); v < perStream; v++ {
				if _, err := s.Append(ctx, id, v, noted{Text: "x"}); err != nil {
					t.Errorf("append %s@%d: %v", id, v, err)
					return
				}
				if _, err := s.ReadStream(ctx, id, 0, 0); err != nil {
					t.Errorf("read %s: %v", id, err)
					return
				}
			}
		}(fmt.Sprintf("stream-%d", i))
	}
	wg.Wait()

	ids, err := s.ListStreams(ctx)
	if err != nil {
		t.Fatalf("list streams: %v", err)
	}
	if len(ids) != streams {
		t.Fatalf("streams = %v", ids)
	}
	for _, id := range ids {
		if _, err := s.VerifyIntegrity(ctx, id); err != nil {
			t.Fatalf("verify %s: %v", id, err)
		}
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New()
	if _, err := s.Append(ctx, "S1", 0, noted{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("append: expected canceled, got %v", err)
	}
	if _, err := s.ReadStream(ctx, "S1", 0, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("read: expected canceled, got %v", err)
	}
	if _, err := s.StreamVersion(ctx, "S1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("version: expected canceled, got %v", err)
	}
	if _, err := s.VerifyIntegrity(ctx, "S1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("verify: expected canceled, got %v", err)
	}
	if _, err := s.ListStreams(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("list: expected canceled, got %v", err)
	}
}

func TestIDGeneratorFailureLeavesStreamUntouched(t *testing.T) {
	s := New(WithIDGenerator(func() (string, error) { return "", errors.New("entropy exhausted") }))
	if _, err := s.Append(context.Background(), "S1", 0, noted{}); err == nil {
		t.Fatal("expected id generation error")
	}
	if v, _ := s.StreamVersion(context.Background(), "S1"); v != 0 {
		t.Fatalf("version = %d after failed append", v)
	}
}
