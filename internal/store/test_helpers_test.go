package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vidindex/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

const (
	testOwner  = "0xa000000000000000000000000000000000000001"
	testViewer = "0xb000000000000000000000000000000000000002"
)

// createTestVideo creates the owner channel and a video with zeroed
// counters.
func createTestVideo(t *testing.T, s *Store, id string) ir.Video {
	t.Helper()
	v := ir.Video{
		ID:        id,
		Title:     "Video " + id,
		Channel:   testOwner,
		TipAmount: new(uint256.Int),
		CreatedAt: 100,
		UpdatedAt: 100,
	}
	err := s.Update(context.Background(), func(tx *Tx) error {
		if _, err := tx.EnsureChannel(context.Background(), testOwner, 100); err != nil {
			return err
		}
		inserted, err := tx.InsertVideo(context.Background(), v)
		if err != nil {
			return err
		}
		require.True(t, inserted)
		return nil
	})
	require.NoError(t, err)
	return v
}

func ensureViewer(t *testing.T, s *Store) {
	t.Helper()
	err := s.Update(context.Background(), func(tx *Tx) error {
		_, err := tx.EnsureChannel(context.Background(), testViewer, 100)
		return err
	})
	require.NoError(t, err)
}
