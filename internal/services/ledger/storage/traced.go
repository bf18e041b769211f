package storage

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
)

const tracerName = "github.com/louisbranch/eventledger/internal/services/ledger/storage"

// Traced wraps an EventStore with one span per operation.
type Traced struct {
	next   EventStore
	tracer trace.Tracer
}

// NewTraced decorates next using the global tracer provider.
func NewTraced(next EventStore) *Traced {
	return NewTracedWithProvider(next, otel.GetTracerProvider())
}

// NewTracedWithProvider decorates next using provider.
func NewTracedWithProvider(next EventStore, provider trace.TracerProvider) *Traced {
	return &Traced{next: next, tracer: provider.Tracer(tracerName)}
}

// Unwrap returns the decorated store.
func (t *Traced) Unwrap() EventStore { return t.next }

func (t *Traced) start(ctx context.Context, name, streamID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("ledger.stream_id", streamID))
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Append implements EventStore.
func (t *Traced) Append(ctx context.Context, streamID string, expectedVersion uint64, payload event.Payload) (event.Event, error) {
	ctx, span := t.start(ctx, "ledger.append", streamID, attribute.Int64("ledger.expected_version", int64(expectedVersion)))
	evt, err := t.next.Append(ctx, streamID, expectedVersion, payload)
	if err == nil {
		span.SetAttributes(attribute.Int64("ledger.version", int64(evt.Version)), attribute.String("ledger.event_type", string(evt.Type)))
	}
	finish(span, err)
	return evt, err
}

// AppendBatch implements EventStore.
func (t *Traced) AppendBatch(ctx context.Context, streamID string, expectedVersion uint64, payloads ...event.Payload) ([]event.Event, error) {
	ctx, span := t.start(ctx, "ledger.append_batch", streamID,
		attribute.Int64("ledger.expected_version", int64(expectedVersion)),
		attribute.Int("ledger.batch_size", len(payloads)),
	)
	events, err := t.next.AppendBatch(ctx, streamID, expectedVersion, payloads...)
	finish(span, err)
	return events, err
}

// ReadStream implements EventStore.
func (t *Traced) ReadStream(ctx context.Context, streamID string, fromVersion, toVersion uint64) ([]event.Event, error) {
	ctx, span := t.start(ctx, "ledger.read_stream", streamID,
		attribute.Int64("ledger.from_version", int64(fromVersion)),
		attribute.Int64("ledger.to_version", int64(toVersion)),
	)
	events, err := t.next.ReadStream(ctx, streamID, fromVersion, toVersion)
	span.SetAttributes(attribute.Int("ledger.event_count", len(events)))
	finish(span, err)
	return events, err
}

// StreamVersion implements EventStore.
func (t *Traced) StreamVersion(ctx context.Context, streamID string) (uint64, error) {
	ctx, span := t.start(ctx, "ledger.stream_version", streamID)
	version, err := t.next.StreamVersion(ctx, streamID)
	finish(span, err)
	return version, err
}

// VerifyIntegrity implements EventStore.
func (t *Traced) VerifyIntegrity(ctx context.Context, streamID string) (VerifyResult, error) {
	ctx, span := t.start(ctx, "ledger.verify", streamID)
	result, err := t.next.VerifyIntegrity(ctx, streamID)
	if version, ok := ViolationVersion(err); ok {
		span.SetAttributes(attribute.Int64("ledger.violation_version", int64(version)))
	}
	finish(span, err)
	return result, err
}

// ListStreams implements EventStore.
func (t *Traced) ListStreams(ctx context.Context) ([]string, error) {
	ctx, span := t.tracer.Start(ctx, "ledger.list_streams")
	streams, err := t.next.ListStreams(ctx)
	finish(span, err)
	return streams, err
}

// Close closes the decorated store when it holds resources.
func (t *Traced) Close() error {
	if c, ok := t.next.(Closer); ok {
		return c.Close()
	}
	return nil
}
