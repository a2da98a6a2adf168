// Package engine implements the vidindex mapping engine.
//
// The engine turns an ordered stream of ledger events into the entity
// tables of the store: one handler per event kind, each reading the
// entities it needs, computing their next state and writing them back.
//
// ARCHITECTURE:
//
// Single-Writer Apply Loop:
// Events are applied one at a time, in delivery order, by one goroutine.
// Counter invariants on a video hold because no two handlers ever touch it
// concurrently.
//
// One Transaction Per Event:
//  1. validate and canonicalize the event
//  2. look the position up in the event log (duplicate or conflict)
//  3. run the handler
//  4. append the event to the log and advance the checkpoint
//  5. commit
//
// A failure anywhere rolls the whole event back, so the checkpoint never
// passes an event whose writes did not commit.
//
// IDEMPOTENCY:
//
// Delivery is at-least-once. A redelivered event is recognised by its
// position and its content hash and skipped before any handler runs. The
// handlers are also safe on their own: append-only children are inserted
// only if absent and counters move only when a row was inserted.
//
// ERRORS:
//
//   - stale reference: the target video is missing; logged and counted.
//     Tips and reports are still recorded and join the video's totals when
//     it is added; other events do nothing
//   - SCHEMA_VIOLATION: the event is outside its domain; fatal
//   - OUT_OF_ORDER, POSITION_CONFLICT: the stream broke its contract; fatal
//   - STORE_UNAVAILABLE: retried with backoff, then fatal
//
// Replay determinism (identical snapshots from identical logs) is checked
// by VerifyReplay.
package engine
