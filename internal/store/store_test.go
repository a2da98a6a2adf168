package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vidindex/internal/ir"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"channels", "videos", "tips", "likes", "comments", "reports", "event_log", "checkpoint"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	// The single pooled connection keeps the in-memory schema alive
	// across calls.
	for i := 0; i < 3; i++ {
		if _, _, err := s.Checkpoint(context.Background()); err != nil {
			t.Fatalf("Checkpoint() call %d failed: %v", i, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.want); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestSchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_videos_report_count'",
	).Scan(&name)
	if err != nil {
		t.Errorf("report_count index missing: %v", err)
	}
}

func TestMigrationDropsVideoForeignKeyOnTipsAndReports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v2.db")

	// A database as written by a v2 build.
	old, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = old.Exec(`
		PRAGMA foreign_keys = ON;
		CREATE TABLE channels (id TEXT PRIMARY KEY, owner TEXT NOT NULL, created_at INTEGER NOT NULL);
		CREATE TABLE tips (
			id TEXT PRIMARY KEY, video TEXT NOT NULL REFERENCES videos(id), amount TEXT NOT NULL,
			from_channel TEXT NOT NULL REFERENCES channels(id), tx_ref TEXT NOT NULL, created_at INTEGER NOT NULL);
		CREATE TABLE reports (
			id TEXT PRIMARY KEY, video TEXT NOT NULL REFERENCES videos(id), reason TEXT NOT NULL,
			description TEXT NOT NULL, reporter TEXT NOT NULL REFERENCES channels(id), created_at INTEGER NOT NULL);
		PRAGMA user_version = 2;
	`)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	for _, table := range []string{"tips", "reports"} {
		var refs int
		err := s.db.QueryRow(
			"SELECT COUNT(*) FROM pragma_foreign_key_list(?) WHERE \"table\" = 'videos'", table,
		).Scan(&refs)
		require.NoError(t, err)
		assert.Zero(t, refs, table)
	}

	ensureViewer(t, s)
	ctx := context.Background()
	err = s.Update(ctx, func(tx *Tx) error {
		_, err := tx.InsertTip(ctx, ir.Tip{ID: "9-1", Video: "9", Amount: uint256.NewInt(1), From: testViewer})
		return err
	})
	require.NoError(t, err)
}
