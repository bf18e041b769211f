// Package migrations embeds SQL migration scripts used by the SQLite event store.
package migrations
