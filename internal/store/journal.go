package store

import (
	"context"
	"fmt"

	"github.com/roach88/vidindex/internal/ir"
)

// EventRecord is one row of the applied event log.
type EventRecord struct {
	Position  ir.Position
	Kind      ir.Kind
	Canonical []byte
	Hash      string
}

// Checkpoint is the last durably applied position.
type Checkpoint struct {
	Position      ir.Position
	RunID         string
	EventsApplied int64
}

func readCheckpoint(ctx context.Context, q queryer) (Checkpoint, bool, error) {
	var (
		cp    Checkpoint
		block int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT block, tx_index, log_index, run_id, events_applied
		FROM checkpoint WHERE id = 1
	`).Scan(&block, &cp.Position.TxIndex, &cp.Position.LogIndex, &cp.RunID, &cp.EventsApplied)
	if err != nil {
		return Checkpoint{}, false, notFoundOK(err, "checkpoint", "1")
	}
	cp.Position.Block = uint64(block)
	return cp, true, nil
}

// Checkpoint returns the current checkpoint; ok is false for a store that
// has never applied an event.
func (s *Store) Checkpoint(ctx context.Context) (cp Checkpoint, ok bool, err error) {
	return readCheckpoint(ctx, s.db)
}

// EventsAfter returns up to limit logged events strictly after pos, in
// producer order. Pass a nil pos to start from the beginning.
func (s *Store) EventsAfter(ctx context.Context, pos *ir.Position, limit int) ([]EventRecord, error) {
	where := ""
	args := []any{}
	if pos != nil {
		// Row-value comparison keeps the (block, tx, log) lexical order.
		where = "WHERE (block, tx_index, log_index) > (?, ?, ?)"
		args = append(args, int64(pos.Block), pos.TxIndex, pos.LogIndex)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT block, tx_index, log_index, kind, event, event_hash
		FROM event_log
		`+where+`
		ORDER BY block ASC, tx_index ASC, log_index ASC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query event log: %w", err)
	}
	defer rows.Close()

	records := []EventRecord{}
	for rows.Next() {
		var (
			rec   EventRecord
			block int64
			kind  string
			event string
		)
		if err := rows.Scan(&block, &rec.Position.TxIndex, &rec.Position.LogIndex, &kind, &event, &rec.Hash); err != nil {
			return nil, fmt.Errorf("scan event log: %w", err)
		}
		rec.Position.Block = uint64(block)
		rec.Kind = ir.Kind(kind)
		rec.Canonical = []byte(event)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event log: %w", err)
	}
	return records, nil
}

// EventCount returns the number of logged events.
func (s *Store) EventCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Reset empties every table so the store can be rebuilt from the first
// event. Children are deleted before parents to satisfy foreign keys.
func (s *Store) Reset(ctx context.Context) error {
	return s.Update(ctx, func(t *Tx) error {
		for _, table := range []string{
			"tips", "likes", "comments", "reports", "videos", "channels", "event_log", "checkpoint",
		} {
			if _, err := t.tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("reset %s: %w", table, err)
			}
		}
		return nil
	})
}
