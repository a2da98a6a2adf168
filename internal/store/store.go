package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations upgrade databases created by older builds. Entry i moves a
// database from user_version i+1 to i+2; fresh databases get every table
// from schema.sql and then run all of them, so each must be idempotent.
var migrations = []string{
	// 2: moderation listings sort videos by reportCount.
	`CREATE INDEX IF NOT EXISTS idx_videos_report_count ON videos(report_count)`,
	// 3: tips and reports no longer require their video to exist.
	`
	CREATE TABLE tips_v3 (
		id           TEXT PRIMARY KEY,
		video        TEXT NOT NULL,
		amount       TEXT NOT NULL,
		from_channel TEXT NOT NULL REFERENCES channels(id),
		tx_ref       TEXT NOT NULL,
		created_at   INTEGER NOT NULL
	);
	INSERT INTO tips_v3 SELECT id, video, amount, from_channel, tx_ref, created_at FROM tips;
	DROP TABLE tips;
	ALTER TABLE tips_v3 RENAME TO tips;
	CREATE INDEX IF NOT EXISTS idx_tips_video ON tips(video);

	CREATE TABLE reports_v3 (
		id          TEXT PRIMARY KEY,
		video       TEXT NOT NULL,
		reason      TEXT NOT NULL,
		description TEXT NOT NULL,
		reporter    TEXT NOT NULL REFERENCES channels(id),
		created_at  INTEGER NOT NULL
	);
	INSERT INTO reports_v3 SELECT id, video, reason, description, reporter, created_at FROM reports;
	DROP TABLE reports;
	ALTER TABLE reports_v3 RENAME TO reports;
	CREATE INDEX IF NOT EXISTS idx_reports_video ON reports(video);
	`,
}

// currentSchemaVersion is the user_version of a fully migrated database.
var currentSchemaVersion = len(migrations) + 1

// Store is the Entity Store: materialized entities plus the applied event
// log and checkpoint, in one SQLite database.
type Store struct {
	db *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx so reads can be shared
// between the store and an open transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open creates or opens the database at path (":memory:" for a private
// in-memory store) and applies pragmas and migrations.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - foreign key enforcement for channels, and for likes and comments on videos
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite allows a single writer, and an in-memory
	// database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies the migrations newer than the stored user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	for i := max(version-1, 0); i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migrate to v%d: %w", i+2, err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
