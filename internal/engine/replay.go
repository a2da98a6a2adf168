package engine

import (
	"context"
	"fmt"

	"github.com/roach88/vidindex/internal/source"
	"github.com/roach88/vidindex/internal/store"
)

// Rebuild applies the event log of from, oldest first, to the empty store
// to. Because handlers are idempotent and the log is in producer order, the
// result matches incremental application field for field.
func Rebuild(ctx context.Context, from, to *store.Store, opts ...Option) error {
	n, err := to.EventCount(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("rebuild: target store already holds %d events", n)
	}
	return Ingest(ctx, New(to, opts...), source.NewLog(from, 0))
}

// ReplayReport is the result of VerifyReplay.
type ReplayReport struct {
	Events        int64
	LiveDigest    string
	ReplayDigests [2]string
}

// Match reports whether both replays reproduced the live store.
func (r ReplayReport) Match() bool {
	return r.ReplayDigests[0] == r.LiveDigest && r.ReplayDigests[1] == r.LiveDigest
}

// VerifyReplay rebuilds st twice, each time from empty into a fresh
// in-memory store, and compares the snapshot digests with st's own.
func VerifyReplay(ctx context.Context, st *store.Store, opts ...Option) (ReplayReport, error) {
	var report ReplayReport

	n, err := st.EventCount(ctx)
	if err != nil {
		return report, err
	}
	report.Events = n

	if report.LiveDigest, err = st.Digest(ctx); err != nil {
		return report, fmt.Errorf("live digest: %w", err)
	}

	for i := range report.ReplayDigests {
		digest, err := rebuildDigest(ctx, st, opts...)
		if err != nil {
			return report, fmt.Errorf("replay %d: %w", i+1, err)
		}
		report.ReplayDigests[i] = digest
	}
	return report, nil
}

func rebuildDigest(ctx context.Context, from *store.Store, opts ...Option) (string, error) {
	to, err := store.Open(":memory:")
	if err != nil {
		return "", err
	}
	defer to.Close()

	if err := Rebuild(ctx, from, to, opts...); err != nil {
		return "", err
	}
	return to.Digest(ctx)
}
