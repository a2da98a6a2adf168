package store

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
)

// Violation is one video whose denormalized counters disagree with its
// child rows.
type Violation struct {
	Video    string
	Field    string
	Stored   string
	Computed string
}

func (v Violation) String() string {
	return fmt.Sprintf("video %s: %s is %s, child rows say %s", v.Video, v.Field, v.Stored, v.Computed)
}

// Audit recomputes every video's counters from its Tip, Like, Comment and
// Report rows and reports the videos where they differ. An empty result
// means the counter invariants hold.
func (s *Store) Audit(ctx context.Context) ([]Violation, error) {
	violations := []Violation{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id,
			v.like_count, (SELECT COUNT(*) FROM likes l WHERE l.video = v.id),
			v.comment_count, (SELECT COUNT(*) FROM comments c WHERE c.video = v.id),
			v.report_count, (SELECT COUNT(*) FROM reports r WHERE r.video = v.id)
		FROM videos v
		ORDER BY v.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("audit counters: %w", err)
	}
	for rows.Next() {
		var (
			id                    string
			likes, liveLikes      int64
			comments, commentRows int64
			reports, reportRows   int64
		)
		if err := rows.Scan(&id, &likes, &liveLikes, &comments, &commentRows, &reports, &reportRows); err != nil {
			rows.Close()
			return nil, fmt.Errorf("audit counters: scan: %w", err)
		}
		for _, c := range []struct {
			field          string
			stored, actual int64
		}{
			{"likeCount", likes, liveLikes},
			{"commentCount", comments, commentRows},
			{"reportCount", reports, reportRows},
		} {
			if c.stored != c.actual {
				violations = append(violations, Violation{
					Video: id, Field: c.field,
					Stored: fmt.Sprint(c.stored), Computed: fmt.Sprint(c.actual),
				})
			}
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("audit counters: %w", err)
	}
	rows.Close()

	tips, err := s.auditTips(ctx)
	if err != nil {
		return nil, err
	}
	return append(violations, tips...), nil
}

// auditTips sums tip amounts in Go; SQLite integers cannot hold 256 bits.
func (s *Store) auditTips(ctx context.Context) ([]Violation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.tip_amount, t.amount
		FROM videos v LEFT JOIN tips t ON t.video = v.id
		ORDER BY v.id COLLATE BINARY ASC, t.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("audit tips: %w", err)
	}
	defer rows.Close()

	var (
		violations []Violation
		current    string
		stored     string
		sum        = new(uint256.Int)
		started    bool
	)
	flush := func() {
		if started && sum.Dec() != stored {
			violations = append(violations, Violation{
				Video: current, Field: "tipAmount", Stored: stored, Computed: sum.Dec(),
			})
		}
	}

	for rows.Next() {
		var (
			id, total string
			amount    *string
		)
		if err := rows.Scan(&id, &total, &amount); err != nil {
			return nil, fmt.Errorf("audit tips: scan: %w", err)
		}
		if !started || id != current {
			flush()
			current, stored, started = id, total, true
			sum.Clear()
		}
		if amount == nil {
			continue
		}
		a, err := parseAmount(*amount)
		if err != nil {
			return nil, fmt.Errorf("audit tips: video %s: %w", id, err)
		}
		if _, overflow := sum.AddOverflow(sum, a); overflow {
			return nil, fmt.Errorf("audit tips: video %s: tip sum overflows 256 bits", id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit tips: %w", err)
	}
	flush()
	return violations, nil
}
