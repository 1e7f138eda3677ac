package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"estate-sync/utils"
)

var postgresDialect = dialect{
	name:        "postgres",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	schema: `
		CREATE TABLE IF NOT EXISTS properties (
			id           SERIAL PRIMARY KEY,
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
			isnew        BOOLEAN NOT NULL DEFAULT TRUE,
			created_at   BIGINT  NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_properties_source     ON properties(source);
		CREATE INDEX IF NOT EXISTS idx_properties_isnew      ON properties(isnew);
		CREATE INDEX IF NOT EXISTS idx_properties_created_at ON properties(created_at);
	`,
}

// PostgresStore persists listings to PostgreSQL.
type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(ctx context.Context, dsn string, retry *utils.RetryConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 10, BaseDelay: 500 * time.Millisecond}
	}
	if err := retry.Do(ctx, "postgres-ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	ps := &PostgresStore{sqlStore: newSQLStore(db, postgresDialect)}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}
