package ledger

import (
	"context"

	apperrors "github.com/louisbranch/eventledger/internal/platform/errors"
	"github.com/louisbranch/eventledger/internal/platform/grpc/pagination"
	grpcmeta "github.com/louisbranch/eventledger/internal/services/ledger/api/grpc/metadata"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	defaultReadPageSize = 200
	maxReadPageSize     = 1000
)

// Service implements ledger.v1.LedgerService over an EventStore.
type Service struct {
	store storage.EventStore
}

var _ LedgerServer = (*Service)(nil)

// NewService creates a Service backed by store.
func NewService(store storage.EventStore) *Service {
	return &Service{store: store}
}

func (s *Service) fail(ctx context.Context, err error) error {
	return apperrors.HandleError(err, grpcmeta.LocaleFromContext(ctx))
}

// Append records one or more events on a stream.
//
// Request: {stream_id, expected_version, events: [{type, data | payload_json}]}.
// Response: {events: [...]} with the stored envelopes.
func (s *Service) Append(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "append request is required")
	}
	expected, err := versionField(in, fieldExpectedVersion)
	if err != nil {
		return nil, err
	}
	entries := in.GetFields()[fieldEvents].GetListValue().GetValues()
	payloads := make([]event.Payload, 0, len(entries))
	for _, entry := range entries {
		raw, err := rawPayload(entry)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, raw)
	}

	stored, err := s.store.AppendBatch(ctx, stringField(in, fieldStreamID), expected, payloads...)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	list, err := eventsToValue(stored)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode events: %v", err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{fieldEvents: list}}, nil
}

// ReadStream returns one page of a stream.
//
// Request: {stream_id, from_version, to_version, page_size}.
// Response: {events: [...], next_from_version} where next_from_version is
// present only when more events may follow.
func (s *Service) ReadStream(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "read stream request is required")
	}
	from, err := versionField(in, fieldFromVersion)
	if err != nil {
		return nil, err
	}
	to, err := versionField(in, fieldToVersion)
	if err != nil {
		return nil, err
	}
	requested, err := versionField(in, fieldPageSize)
	if err != nil {
		return nil, err
	}
	pageSize := pagination.ClampPageSize(int32(min(requested, maxReadPageSize)), pagination.PageSizeConfig{
		Default: defaultReadPageSize,
		Max:     maxReadPageSize,
	})

	if from == 0 {
		from = 1
	}
	pageEnd := from + uint64(pageSize) - 1
	if to != 0 && to < pageEnd {
		pageEnd = to
	}
	events, err := s.store.ReadStream(ctx, stringField(in, fieldStreamID), from, pageEnd)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	list, err := eventsToValue(events)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode events: %v", err)
	}
	out := &structpb.Struct{Fields: map[string]*structpb.Value{fieldEvents: list}}
	if len(events) == pageSize && (to == 0 || pageEnd < to) {
		out.Fields[fieldNextFromVersion] = structpb.NewNumberValue(float64(pageEnd + 1))
	}
	return out, nil
}

// StreamVersion returns the head version of a stream, 0 when absent.
func (s *Service) StreamVersion(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	version, err := s.store.StreamVersion(ctx, in.GetValue())
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return wrapperspb.UInt64(version), nil
}

// VerifyIntegrity recomputes a stream's chain.
//
// Response: {stream_id, verified, head_hash}. A broken chain fails with
// DataLoss and the offending version in the ErrorInfo metadata.
func (s *Service) VerifyIntegrity(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	result, err := s.store.VerifyIntegrity(ctx, in.GetValue())
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return verifyResultToStruct(result), nil
}

// ListStreams returns every stream id in lexical order.
func (s *Service) ListStreams(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	ids, err := s.store.ListStreams(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	values := make([]*structpb.Value, 0, len(ids))
	for _, id := range ids {
		values = append(values, structpb.NewStringValue(id))
	}
	return &structpb.ListValue{Values: values}, nil
}
