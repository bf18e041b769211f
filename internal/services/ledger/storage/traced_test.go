package storage_test

import (
	"context"
	"errors"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/louisbranch/eventledger/internal/services/ledger/storage"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage/memory"
)

func TestTracedRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	store := storage.NewTracedWithProvider(memory.New(), provider)
	ctx := context.Background()

	if _, err := store.Append(ctx, "S1", 0, counted{Count: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.Append(ctx, "S1", 0, counted{Count: 2}); !errors.Is(err, storage.ErrConcurrencyConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := store.ReadStream(ctx, "S1", 0, 0); err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, err := store.VerifyIntegrity(ctx, "S1"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	spans := recorder.Ended()
	want := []string{"ledger.append", "ledger.append", "ledger.read_stream", "ledger.verify"}
	if len(spans) != len(want) {
		t.Fatalf("got %d spans, want %d", len(spans), len(want))
	}
	for i, span := range spans {
		if span.Name() != want[i] {
			t.Fatalf("span %d = %s, want %s", i, span.Name(), want[i])
		}
	}
	if spans[1].Status().Code.String() != "Error" {
		t.Fatalf("conflict span status = %v", spans[1].Status())
	}
}

func TestTracedUnwrapAndClose(t *testing.T) {
	inner := memory.New()
	traced := storage.NewTraced(inner)
	if traced.Unwrap() != inner {
		t.Fatal("unwrap should return decorated store")
	}
	if err := traced.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
