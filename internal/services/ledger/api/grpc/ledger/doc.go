// Package ledger exposes the event store over gRPC as ledger.v1.LedgerService.
//
// Messages are well-known protobuf types (Struct, StringValue, UInt64Value,
// Empty) so the service carries no generated stubs. The Struct layouts are
// documented in api/proto/ledger/v1/ledger.proto. Event payloads travel as
// canonical JSON text in "payload_json" next to a decoded "data" object for
// readability; the store re-canonicalizes whatever arrives, so hashes do not
// depend on the client's encoder. Domain errors leave through
// apperrors.HandleError and Client rebuilds them with FromGRPCStatus.
package ledger
