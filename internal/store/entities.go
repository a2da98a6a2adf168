package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/roach88/vidindex/internal/ir"
)

// Row-level reads and writes shared by Store (autocommit reads) and Tx.
// Inserts use ON CONFLICT DO NOTHING and report whether a row was created,
// which is what lets handlers bump counters only on first application.

func ensureChannel(ctx context.Context, q queryer, id string, createdAt int64) (bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO channels (id, owner, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, id, createdAt)
	if err != nil {
		return false, fmt.Errorf("ensure channel %s: %w", id, err)
	}
	return insertedRow(res)
}

func getChannel(ctx context.Context, q queryer, id string) (ir.Channel, bool, error) {
	var c ir.Channel
	err := q.QueryRowContext(ctx, `
		SELECT id, owner, created_at FROM channels WHERE id = ?
	`, id).Scan(&c.ID, &c.Owner, &c.CreatedAt)
	return c, found(err), notFoundOK(err, "channel", id)
}

const videoColumns = `id, title, description, category, location, thumbnail_ref, content_ref,
	channel, eoa, tip_amount, like_count, comment_count, report_count,
	flagged, removed, created_at, updated_at`

func getVideo(ctx context.Context, q queryer, id string) (ir.Video, bool, error) {
	var (
		v   ir.Video
		tip string
	)
	err := q.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id).Scan(
		&v.ID, &v.Title, &v.Description, &v.Category, &v.Location, &v.ThumbnailRef, &v.ContentRef,
		&v.Channel, &v.EOA, &tip, &v.LikeCount, &v.CommentCount, &v.ReportCount,
		&v.Flagged, &v.Removed, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return ir.Video{}, false, notFoundOK(err, "video", id)
	}
	if v.TipAmount, err = parseAmount(tip); err != nil {
		return ir.Video{}, false, fmt.Errorf("video %s: tip_amount: %w", id, err)
	}
	return v, true, nil
}

func insertVideo(ctx context.Context, q queryer, v ir.Video) (bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		v.ID, v.Title, v.Description, v.Category, v.Location, v.ThumbnailRef, v.ContentRef,
		v.Channel, v.EOA, formatAmount(v.TipAmount), v.LikeCount, v.CommentCount, v.ReportCount,
		v.Flagged, v.Removed, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert video %s: %w", v.ID, err)
	}
	return insertedRow(res)
}

func putVideo(ctx context.Context, q queryer, v ir.Video) error {
	res, err := q.ExecContext(ctx, `
		UPDATE videos SET
			title = ?, description = ?, category = ?, location = ?, thumbnail_ref = ?,
			content_ref = ?, channel = ?, eoa = ?, tip_amount = ?, like_count = ?,
			comment_count = ?, report_count = ?, flagged = ?, removed = ?,
			created_at = ?, updated_at = ?
		WHERE id = ?
	`,
		v.Title, v.Description, v.Category, v.Location, v.ThumbnailRef,
		v.ContentRef, v.Channel, v.EOA, formatAmount(v.TipAmount), v.LikeCount,
		v.CommentCount, v.ReportCount, v.Flagged, v.Removed,
		v.CreatedAt, v.UpdatedAt,
		v.ID,
	)
	if err != nil {
		return fmt.Errorf("put video %s: %w", v.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put video %s: rows affected: %w", v.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("put video %s: %w", v.ID, ErrNotFound)
	}
	return nil
}

func insertTip(ctx context.Context, q queryer, t ir.Tip) (bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO tips (id, video, amount, from_channel, tx_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, t.ID, t.Video, formatAmount(t.Amount), t.From, t.TxRef, t.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert tip %s: %w", t.ID, err)
	}
	return insertedRow(res)
}

func getTip(ctx context.Context, q queryer, id string) (ir.Tip, bool, error) {
	var (
		t      ir.Tip
		amount string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, video, amount, from_channel, tx_ref, created_at FROM tips WHERE id = ?
	`, id).Scan(&t.ID, &t.Video, &amount, &t.From, &t.TxRef, &t.CreatedAt)
	if err != nil {
		return ir.Tip{}, false, notFoundOK(err, "tip", id)
	}
	if t.Amount, err = parseAmount(amount); err != nil {
		return ir.Tip{}, false, fmt.Errorf("tip %s: amount: %w", id, err)
	}
	return t, true, nil
}

func getLike(ctx context.Context, q queryer, id string) (ir.Like, bool, error) {
	var l ir.Like
	err := q.QueryRowContext(ctx, `
		SELECT id, video, liked_by, created_at FROM likes WHERE id = ?
	`, id).Scan(&l.ID, &l.Video, &l.LikedBy, &l.CreatedAt)
	return l, found(err), notFoundOK(err, "like", id)
}

func insertLike(ctx context.Context, q queryer, l ir.Like) (bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO likes (id, video, liked_by, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, l.ID, l.Video, l.LikedBy, l.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert like %s: %w", l.ID, err)
	}
	return insertedRow(res)
}

func deleteLike(ctx context.Context, q queryer, id string) (bool, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM likes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete like %s: %w", id, err)
	}
	return insertedRow(res)
}

func insertComment(ctx context.Context, q queryer, c ir.Comment) (bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO comments (id, video, author, content, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, c.ID, c.Video, c.Author, c.Content, c.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert comment %s: %w", c.ID, err)
	}
	return insertedRow(res)
}

func getComment(ctx context.Context, q queryer, id string) (ir.Comment, bool, error) {
	var c ir.Comment
	err := q.QueryRowContext(ctx, `
		SELECT id, video, author, content, created_at FROM comments WHERE id = ?
	`, id).Scan(&c.ID, &c.Video, &c.Author, &c.Content, &c.CreatedAt)
	return c, found(err), notFoundOK(err, "comment", id)
}

func insertReport(ctx context.Context, q queryer, r ir.Report) (bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO reports (id, video, reason, description, reporter, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, r.ID, r.Video, r.Reason.String(), r.Description, r.Reporter, r.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert report %s: %w", r.ID, err)
	}
	return insertedRow(res)
}

func getReport(ctx context.Context, q queryer, id string) (ir.Report, bool, error) {
	var (
		r      ir.Report
		reason string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, video, reason, description, reporter, created_at FROM reports WHERE id = ?
	`, id).Scan(&r.ID, &r.Video, &reason, &r.Description, &r.Reporter, &r.CreatedAt)
	if err != nil {
		return ir.Report{}, false, notFoundOK(err, "report", id)
	}
	var ok bool
	if r.Reason, ok = ir.ParseReason(reason); !ok {
		return ir.Report{}, false, fmt.Errorf("report %s: unknown reason %q", id, reason)
	}
	return r, true, nil
}

// ErrNotFound is returned by writes that target a missing row.
var ErrNotFound = errors.New("not found")

func insertedRow(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func found(err error) bool {
	return err == nil
}

// notFoundOK maps sql.ErrNoRows to a nil error; absence is reported
// through the found flag.
func notFoundOK(err error, entity, id string) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return fmt.Errorf("get %s %s: %w", entity, id, err)
}

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// recordedChildren totals the tips and counts the reports already stored
// for a video. Both can exist before the video itself does.
func recordedChildren(ctx context.Context, q queryer, videoID string) (*uint256.Int, int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT amount FROM tips WHERE video = ?`, videoID)
	if err != nil {
		return nil, 0, fmt.Errorf("tips of video %s: %w", videoID, err)
	}
	defer rows.Close()

	total := new(uint256.Int)
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return nil, 0, fmt.Errorf("tips of video %s: scan: %w", videoID, err)
		}
		a, err := parseAmount(amount)
		if err != nil {
			return nil, 0, fmt.Errorf("tips of video %s: amount: %w", videoID, err)
		}
		if _, overflow := total.AddOverflow(total, a); overflow {
			return nil, 0, fmt.Errorf("tips of video %s: sum overflows 256 bits", videoID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("tips of video %s: %w", videoID, err)
	}

	var reports int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE video = ?`, videoID).Scan(&reports); err != nil {
		return nil, 0, fmt.Errorf("reports of video %s: %w", videoID, err)
	}
	return total, reports, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	return uint256.FromDecimal(s)
}
