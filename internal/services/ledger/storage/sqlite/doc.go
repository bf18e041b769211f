// Package sqlite implements the durable event journal on SQLite.
//
// Appends run in an immediate transaction that reads the stream head, checks
// the expected version, and inserts the sealed rows; the (stream_id, version)
// primary key backs the version check. Schema history is applied from
// embedded migrations when the store opens.
package sqlite
