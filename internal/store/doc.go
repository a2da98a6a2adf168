// Package store is the Entity Store: SQLite-backed materialized entities
// (Channel, Video, Tip, Like, Comment, Report), the log of applied events
// and the resume checkpoint.
//
// # Writes
//
// All writes go through Store.Update, which hands a *Tx to a callback and
// commits only if the callback succeeds. The mapping engine applies one
// event per transaction: entity changes, the event log row and the
// checkpoint advance commit together or not at all, so the checkpoint can
// never move past an event whose writes did not land.
//
// Inserts of append-only rows use ON CONFLICT(id) DO NOTHING and report
// whether a row was created. Channel creation is the idempotent upsert
// EnsureChannel. Likes are the only rows ever deleted.
//
// # Reads
//
// Find and Count execute Read API queries compiled by internal/querysql.
// Every multi-row read has a deterministic order ending in
// id COLLATE BINARY. Snapshot and Digest expose the whole entity state for
// replay comparison; Audit recomputes denormalized counters from child rows.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: child rows must reference existing channels; likes
//     and comments must also reference an existing video
//   - one pooled connection, which also keeps ":memory:" databases alive
package store
