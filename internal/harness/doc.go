// Package harness runs scenario files against a fresh indexer.
//
// # Scenario Format
//
// Scenarios are YAML documents. Events use the same shape as the JSONL
// wire format; amounts are decimal strings and addresses 0x-prefixed hex.
//
//	name: tip_then_like
//	description: "A tip adds to the video total"
//	events:
//	  - kind: VideoAdded
//	    position: { block: 1, tx: 0, log: 0 }
//	    timestamp: 1700000000
//	    payload: { id: 1, title: "intro", owner: "0x...a1", ... }
//	  - kind: VideoTipped
//	    position: { block: 2, tx: 0, log: 0 }
//	    timestamp: 1700000012
//	    payload: { tip_id: 1, video_id: 1, amount: "500", from: "0x...a2" }
//	assertions:
//	  - type: entity
//	    entity: video
//	    id: "1"
//	    expect: { tipAmount: "500" }
//	  - type: count
//	    entity: tip
//	    where: { video: "1" }
//	    count: 1
//
// # Assertion Types
//
//   - entity: the entity exists and its fields contain expect (subset match)
//   - absent: no entity with that id exists
//   - count: number of entities matching a Read API where filter
//   - error: the event at index event failed with error code code
//
// # Execution
//
// Every run uses an in-memory store and a fixed run id. Events are applied
// one at a time; the first failing event stops the run, exactly as the
// indexer loop would. After the last event the event log is replayed twice
// into fresh stores and all three snapshot digests must agree.
//
// The final snapshot can be compared with a golden file:
//
//	go test ./internal/harness -update
package harness
