// Package ir holds the shared vocabulary of the indexer: ledger events and
// their positions, materialized entity shapes, the identity/key scheme, the
// report reason enumeration, and the canonical JSON encoding used for event
// hashes and snapshot digests.
//
// ir imports nothing internal. Every other package builds on it.
//
// Constraints:
//   - no float types anywhere; 256-bit amounts travel as decimal strings
//   - entity timestamps come from events, never from a local clock
//   - key derivation is pure and order independent
package ir
