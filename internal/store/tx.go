package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/roach88/vidindex/internal/ir"
)

// Tx is one atomic unit of work against the store. Nothing written through
// a Tx is visible to readers until Update commits it.
type Tx struct {
	tx *sql.Tx
}

// Update runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise, so a failing handler leaves no
// partial writes behind.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// EnsureChannel creates the channel for an address if it does not exist
// yet. It is the store's get-or-create primitive; created reports whether
// this call made the row.
func (t *Tx) EnsureChannel(ctx context.Context, id string, createdAt int64) (created bool, err error) {
	return ensureChannel(ctx, t.tx, id, createdAt)
}

// GetChannel loads a channel.
func (t *Tx) GetChannel(ctx context.Context, id string) (ir.Channel, bool, error) {
	return getChannel(ctx, t.tx, id)
}

// GetVideo loads a video.
func (t *Tx) GetVideo(ctx context.Context, id string) (ir.Video, bool, error) {
	return getVideo(ctx, t.tx, id)
}

// InsertVideo creates a video unless one with the same id exists.
func (t *Tx) InsertVideo(ctx context.Context, v ir.Video) (inserted bool, err error) {
	return insertVideo(ctx, t.tx, v)
}

// PutVideo overwrites an existing video.
func (t *Tx) PutVideo(ctx context.Context, v ir.Video) error {
	return putVideo(ctx, t.tx, v)
}

// InsertTip records a tip unless it was recorded before.
func (t *Tx) InsertTip(ctx context.Context, tip ir.Tip) (inserted bool, err error) {
	return insertTip(ctx, t.tx, tip)
}

// GetLike loads a like.
func (t *Tx) GetLike(ctx context.Context, id string) (ir.Like, bool, error) {
	return getLike(ctx, t.tx, id)
}

// InsertLike creates a like unless the slot is already taken.
func (t *Tx) InsertLike(ctx context.Context, l ir.Like) (inserted bool, err error) {
	return insertLike(ctx, t.tx, l)
}

// DeleteLike removes a like. Likes are the only entity with deletion.
func (t *Tx) DeleteLike(ctx context.Context, id string) (deleted bool, err error) {
	return deleteLike(ctx, t.tx, id)
}

// InsertComment records a comment unless it was recorded before.
func (t *Tx) InsertComment(ctx context.Context, c ir.Comment) (inserted bool, err error) {
	return insertComment(ctx, t.tx, c)
}

// InsertReport records a report unless it was recorded before.
func (t *Tx) InsertReport(ctx context.Context, r ir.Report) (inserted bool, err error) {
	return insertReport(ctx, t.tx, r)
}

// RecordedChildren returns the tip total and report count already stored
// for a video, including rows recorded before the video was added.
func (t *Tx) RecordedChildren(ctx context.Context, videoID string) (tipTotal *uint256.Int, reports int64, err error) {
	return recordedChildren(ctx, t.tx, videoID)
}

// LookupEvent returns the hash of the event applied at pos, if any.
func (t *Tx) LookupEvent(ctx context.Context, pos ir.Position) (hash string, found bool, err error) {
	err = t.tx.QueryRowContext(ctx, `
		SELECT event_hash FROM event_log
		WHERE block = ? AND tx_index = ? AND log_index = ?
	`, int64(pos.Block), pos.TxIndex, pos.LogIndex).Scan(&hash)
	if err != nil {
		return "", false, notFoundOK(err, "event", pos.String())
	}
	return hash, true, nil
}

// AppendEvent adds an applied event to the log.
func (t *Tx) AppendEvent(ctx context.Context, rec EventRecord) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO event_log (block, tx_index, log_index, kind, event, event_hash)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		int64(rec.Position.Block), rec.Position.TxIndex, rec.Position.LogIndex,
		string(rec.Kind), string(rec.Canonical), rec.Hash,
	)
	if err != nil {
		return fmt.Errorf("append event %s: %w", rec.Position, err)
	}
	return nil
}

// Checkpoint reads the checkpoint inside the transaction.
func (t *Tx) Checkpoint(ctx context.Context) (Checkpoint, bool, error) {
	return readCheckpoint(ctx, t.tx)
}

// AdvanceCheckpoint moves the checkpoint to pos and counts one more applied
// event. It refuses to move backwards.
func (t *Tx) AdvanceCheckpoint(ctx context.Context, pos ir.Position, runID string) error {
	cp, ok, err := readCheckpoint(ctx, t.tx)
	if err != nil {
		return err
	}
	if ok && !cp.Position.Before(pos) {
		return fmt.Errorf("advance checkpoint: %s is not after %s", pos, cp.Position)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO checkpoint (id, block, tx_index, log_index, run_id, events_applied)
		VALUES (1, ?, ?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			block = excluded.block,
			tx_index = excluded.tx_index,
			log_index = excluded.log_index,
			run_id = excluded.run_id,
			events_applied = checkpoint.events_applied + 1
	`, int64(pos.Block), pos.TxIndex, pos.LogIndex, runID)
	if err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}
	return nil
}
