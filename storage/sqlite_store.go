package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

var sqliteDialect = dialect{
	name:        "sqlite",
	placeholder: func(int) string { return "?" },
	schema: `
		CREATE TABLE IF NOT EXISTS properties (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			propertyname TEXT    NOT NULL DEFAULT '',
			price        TEXT    NOT NULL DEFAULT '',
			bhk          TEXT    NOT NULL DEFAULT '',
			locality     TEXT    NOT NULL DEFAULT '',
			area         TEXT    NOT NULL DEFAULT '',
			developer    TEXT    NOT NULL DEFAULT '',
			status       TEXT    NOT NULL DEFAULT '',
			regdate      TEXT    NOT NULL DEFAULT '',
			link         TEXT    UNIQUE NOT NULL,
			propertytype TEXT    NOT NULL DEFAULT '',
			city         TEXT    NOT NULL DEFAULT '',
			furnishing   TEXT    NOT NULL DEFAULT '',
			fomo         TEXT    NOT NULL DEFAULT '',
			source       TEXT    NOT NULL DEFAULT '',
			isnew        BOOLEAN NOT NULL DEFAULT 1,
			created_at   INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_properties_source     ON properties(source);
		CREATE INDEX IF NOT EXISTS idx_properties_isnew      ON properties(isnew);
		CREATE INDEX IF NOT EXISTS idx_properties_created_at ON properties(created_at);
	`,
}

// SQLiteStore persists listings to a local SQLite file.
type SQLiteStore struct {
	*sqlStore
	path string
}

// NewSQLiteStore opens (or creates) the database at path and runs migrations.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	s := &SQLiteStore{sqlStore: newSQLStore(db, sqliteDialect), path: path}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}
