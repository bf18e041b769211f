package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/louisbranch/eventledger/internal/platform/errors"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a storage.EventStore backed by a remote LedgerService. Domain
// errors are rebuilt on the client side, so errors.Is against the storage
// sentinels works across the hop.
type Client struct {
	conn grpc.ClientConnInterface
	// PageSize is sent with ReadStream calls; 0 lets the server choose.
	PageSize uint64
}

var _ storage.EventStore = (*Client)(nil)

// NewClient wraps an established connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return apperrors.FromGRPCStatus(err)
	}
	return nil
}

// Append implements storage.EventStore.
func (c *Client) Append(ctx context.Context, streamID string, expectedVersion uint64, payload event.Payload) (event.Event, error) {
	events, err := c.AppendBatch(ctx, streamID, expectedVersion, payload)
	if err != nil {
		return event.Event{}, err
	}
	if len(events) == 0 {
		return event.Event{}, fmt.Errorf("append returned no events")
	}
	return events[0], nil
}

// AppendBatch implements storage.EventStore.
func (c *Client) AppendBatch(ctx context.Context, streamID string, expectedVersion uint64, payloads ...event.Payload) ([]event.Event, error) {
	entries := make([]*structpb.Value, 0, len(payloads))
	for _, payload := range payloads {
		if payload == nil {
			return nil, apperrors.WithMetadata(
				apperrors.CodeEventPayloadInvalid,
				"event payload is required",
				map[string]string{apperrors.MetaStreamID: streamID},
			)
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, apperrors.WrapWithMetadata(
				apperrors.CodeEventPayloadInvalid,
				"encode event payload",
				map[string]string{apperrors.MetaStreamID: streamID, apperrors.MetaEventType: string(payload.EventType()), apperrors.MetaReason: err.Error()},
				err,
			)
		}
		entries = append(entries, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			fieldType:        structpb.NewStringValue(string(payload.EventType())),
			fieldPayloadJSON: structpb.NewStringValue(string(data)),
		}}))
	}
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldStreamID:        structpb.NewStringValue(streamID),
		fieldExpectedVersion: structpb.NewNumberValue(float64(expectedVersion)),
		fieldEvents:          structpb.NewListValue(&structpb.ListValue{Values: entries}),
	}}
	out := &structpb.Struct{}
	if err := c.invoke(ctx, methodAppend, in, out); err != nil {
		return nil, err
	}
	return eventsFromStruct(out)
}

// ReadStream implements storage.EventStore, following pages until the range
// is exhausted.
func (c *Client) ReadStream(ctx context.Context, streamID string, fromVersion, toVersion uint64) ([]event.Event, error) {
	events := []event.Event{}
	for {
		in := &structpb.Struct{Fields: map[string]*structpb.Value{
			fieldStreamID:    structpb.NewStringValue(streamID),
			fieldFromVersion: structpb.NewNumberValue(float64(fromVersion)),
			fieldToVersion:   structpb.NewNumberValue(float64(toVersion)),
			fieldPageSize:    structpb.NewNumberValue(float64(c.PageSize)),
		}}
		out := &structpb.Struct{}
		if err := c.invoke(ctx, methodReadStream, in, out); err != nil {
			return nil, err
		}
		page, err := eventsFromStruct(out)
		if err != nil {
			return nil, err
		}
		events = append(events, page...)

		if _, more := out.GetFields()[fieldNextFromVersion]; !more {
			return events, nil
		}
		next, err := versionField(out, fieldNextFromVersion)
		if err != nil {
			return nil, err
		}
		if next <= fromVersion {
			return nil, fmt.Errorf("read stream %s: page cursor did not advance", streamID)
		}
		fromVersion = next
	}
}

// StreamVersion implements storage.EventStore.
func (c *Client) StreamVersion(ctx context.Context, streamID string) (uint64, error) {
	out := &wrapperspb.UInt64Value{}
	if err := c.invoke(ctx, methodStreamVersion, wrapperspb.String(streamID), out); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

// VerifyIntegrity implements storage.EventStore.
func (c *Client) VerifyIntegrity(ctx context.Context, streamID string) (storage.VerifyResult, error) {
	out := &structpb.Struct{}
	if err := c.invoke(ctx, methodVerifyIntegrity, wrapperspb.String(streamID), out); err != nil {
		return storage.VerifyResult{}, err
	}
	return verifyResultFromStruct(out)
}

// ListStreams implements storage.EventStore.
func (c *Client) ListStreams(ctx context.Context) ([]string, error) {
	out := &structpb.ListValue{}
	if err := c.invoke(ctx, methodListStreams, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(out.GetValues()))
	for _, value := range out.GetValues() {
		ids = append(ids, value.GetStringValue())
	}
	return ids, nil
}
