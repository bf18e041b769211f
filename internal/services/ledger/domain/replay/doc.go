// Package replay folds an ordered event stream into aggregate state.
//
// Handlers are pure functions keyed by event type. Replay reads the stream in
// pages, checks that versions are gap-free, and applies each handler in
// ascending version order. A snapshot may shorten the walk; it is trusted
// only while its version and chain hash still match the stream.
package replay
