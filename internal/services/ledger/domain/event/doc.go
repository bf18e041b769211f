// Package event defines the canonical event envelope and event-type registry used by
// the ledger write path.
//
// Events are immutable facts about one stream. The registry binds each type to an
// owning domain and checks payload validity before the store assigns version and
// integrity fields.
package event
