package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Field names shared by requests and responses.
const (
	fieldStreamID        = "stream_id"
	fieldExpectedVersion = "expected_version"
	fieldEvents          = "events"
	fieldFromVersion     = "from_version"
	fieldToVersion       = "to_version"
	fieldPageSize        = "page_size"
	fieldNextFromVersion = "next_from_version"
	fieldEventID         = "event_id"
	fieldVersion         = "version"
	fieldType            = "type"
	fieldTimestamp       = "timestamp"
	fieldData            = "data"
	fieldPayloadJSON     = "payload_json"
	fieldHash            = "hash"
	fieldPrevHash        = "prev_hash"
	fieldChainHash       = "chain_hash"
	fieldSignature       = "signature"
	fieldSignatureKeyID  = "signature_key_id"
	fieldVerified        = "verified"
	fieldHeadHash        = "head_hash"
)

// maxExactVersion is the largest version a Struct number carries exactly.
const maxExactVersion = 1 << 53

func stringField(in *structpb.Struct, name string) string {
	return strings.TrimSpace(in.GetFields()[name].GetStringValue())
}

// versionField reads a non-negative integral number; absent means 0.
func versionField(in *structpb.Struct, name string) (uint64, error) {
	value, ok := in.GetFields()[name]
	if !ok {
		return 0, nil
	}
	if _, isNumber := value.GetKind().(*structpb.Value_NumberValue); !isNumber {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
	n := value.GetNumberValue()
	if n < 0 || n != math.Trunc(n) || n > maxExactVersion {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a non-negative integer", name)
	}
	return uint64(n), nil
}

// rawPayload turns one request entry into an event.Raw. payload_json wins
// over data when both are present.
func rawPayload(entry *structpb.Value) (event.Raw, error) {
	fields := entry.GetStructValue()
	if fields == nil {
		return event.Raw{}, status.Error(codes.InvalidArgument, "events entries must be objects")
	}
	raw := event.Raw{Type: event.Type(stringField(fields, fieldType))}
	if text := fields.GetFields()[fieldPayloadJSON].GetStringValue(); text != "" {
		raw.Data = json.RawMessage(text)
		return raw, nil
	}
	if data, ok := fields.GetFields()[fieldData]; ok {
		encoded, err := data.MarshalJSON()
		if err != nil {
			return event.Raw{}, status.Errorf(codes.InvalidArgument, "encode event data: %v", err)
		}
		raw.Data = encoded
	}
	return raw, nil
}

func eventToValue(evt event.Event) (*structpb.Value, error) {
	fields := map[string]*structpb.Value{
		fieldEventID:        structpb.NewStringValue(evt.ID),
		fieldStreamID:       structpb.NewStringValue(evt.StreamID),
		fieldVersion:        structpb.NewNumberValue(float64(evt.Version)),
		fieldType:           structpb.NewStringValue(string(evt.Type)),
		fieldTimestamp:      structpb.NewStringValue(evt.Timestamp.UTC().Format(time.RFC3339Nano)),
		fieldPayloadJSON:    structpb.NewStringValue(string(evt.PayloadJSON)),
		fieldHash:           structpb.NewStringValue(evt.Hash),
		fieldPrevHash:       structpb.NewStringValue(evt.PrevHash),
		fieldChainHash:      structpb.NewStringValue(evt.ChainHash),
		fieldSignature:      structpb.NewStringValue(evt.Signature),
		fieldSignatureKeyID: structpb.NewStringValue(evt.SignatureKeyID),
	}
	if len(evt.PayloadJSON) > 0 {
		data := &structpb.Value{}
		if err := data.UnmarshalJSON(evt.PayloadJSON); err != nil {
			return nil, fmt.Errorf("decode payload of %s@%d: %w", evt.StreamID, evt.Version, err)
		}
		fields[fieldData] = data
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields}), nil
}

func eventsToValue(events []event.Event) (*structpb.Value, error) {
	values := make([]*structpb.Value, 0, len(events))
	for _, evt := range events {
		value, err := eventToValue(evt)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values}), nil
}

func eventFromValue(value *structpb.Value) (event.Event, error) {
	fields := value.GetStructValue()
	if fields == nil {
		return event.Event{}, fmt.Errorf("event entry is not an object")
	}
	version, err := versionField(fields, fieldVersion)
	if err != nil {
		return event.Event{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, stringField(fields, fieldTimestamp))
	if err != nil {
		return event.Event{}, fmt.Errorf("parse event timestamp: %w", err)
	}
	return event.Event{
		ID:             stringField(fields, fieldEventID),
		StreamID:       stringField(fields, fieldStreamID),
		Version:        version,
		Type:           event.Type(stringField(fields, fieldType)),
		Timestamp:      ts.UTC(),
		PayloadJSON:    []byte(fields.GetFields()[fieldPayloadJSON].GetStringValue()),
		Hash:           stringField(fields, fieldHash),
		PrevHash:       stringField(fields, fieldPrevHash),
		ChainHash:      stringField(fields, fieldChainHash),
		Signature:      stringField(fields, fieldSignature),
		SignatureKeyID: stringField(fields, fieldSignatureKeyID),
	}, nil
}

func eventsFromStruct(in *structpb.Struct) ([]event.Event, error) {
	entries := in.GetFields()[fieldEvents].GetListValue().GetValues()
	events := make([]event.Event, 0, len(entries))
	for _, entry := range entries {
		evt, err := eventFromValue(entry)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, nil
}

func verifyResultToStruct(result storage.VerifyResult) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldStreamID: structpb.NewStringValue(result.StreamID),
		fieldVerified: structpb.NewNumberValue(float64(result.Verified)),
		fieldHeadHash: structpb.NewStringValue(result.HeadHash),
	}}
}

func verifyResultFromStruct(in *structpb.Struct) (storage.VerifyResult, error) {
	verified, err := versionField(in, fieldVerified)
	if err != nil {
		return storage.VerifyResult{}, err
	}
	return storage.VerifyResult{
		StreamID: stringField(in, fieldStreamID),
		Verified: verified,
		HeadHash: stringField(in, fieldHeadHash),
	}, nil
}
