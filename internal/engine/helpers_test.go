package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/vidindex/internal/ir"
	"github.com/roach88/vidindex/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *store.Store) {
	t.Helper()
	s := setupTestStore(t)
	base := []Option{
		WithLogger(discardLogger()),
		WithRunIDGenerator(NewFixedGenerator("run-1")),
	}
	return New(s, append(base, opts...)...), s
}

func mustApply(t *testing.T, e *Engine, events ...ir.Event) {
	t.Helper()
	for _, ev := range events {
		applied, err := e.Apply(context.Background(), ev)
		require.NoError(t, err, "apply %s at %s", ev.Kind, ev.Position)
		require.True(t, applied, "apply %s at %s", ev.Kind, ev.Position)
	}
}

func getVideo(t *testing.T, s *store.Store, id string) ir.Video {
	t.Helper()
	v, ok, err := s.GetVideo(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok, "video %s not found", id)
	return v
}

func digest(t *testing.T, s *store.Store) string {
	t.Helper()
	d, err := s.Digest(context.Background())
	require.NoError(t, err)
	return d
}

// assertReplayMatches rebuilds s from its event log and requires the same
// digest and a clean counter audit.
func assertReplayMatches(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()

	report, err := VerifyReplay(ctx, s, WithLogger(discardLogger()))
	require.NoError(t, err)
	require.True(t, report.Match(), "live %s, replays %v", report.LiveDigest, report.ReplayDigests)

	violations, err := s.Audit(ctx)
	require.NoError(t, err)
	require.Empty(t, violations)
}
