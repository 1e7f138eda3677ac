package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"estate-sync/models"
)

const (
	tableName   = "properties"
	lookupChunk = 500
)

// listingColumns are the writable columns, in bind order.
var listingColumns = []string{
	"propertyname", "price", "bhk", "locality", "area", "developer", "status",
	"regdate", "link", "propertytype", "city", "furnishing", "fomo", "source", "isnew",
}

// dialect captures the differences between the SQL backends.
type dialect struct {
	name        string
	placeholder func(n int) string
	schema      string
}

// sqlStore implements ListingStore over database/sql. The Postgres and
// SQLite stores embed it with their own dialect.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func newSQLStore(db *sql.DB, d dialect) *sqlStore {
	return &sqlStore{db: db, dialect: d, now: time.Now}
}

func (s *sqlStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.schema)
	return err
}

// ResetFresh clears every set freshness flag.
func (s *sqlStore) ResetFresh(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE `+tableName+` SET isnew = FALSE WHERE isnew = TRUE`)
	if err != nil {
		return 0, fmt.Errorf("%s: reset fresh: %w", s.dialect.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: reset fresh: %w", s.dialect.name, err)
	}
	return n, nil
}

// Lookup returns link+area for the stored listings among links.
func (s *sqlStore) Lookup(ctx context.Context, links []string) ([]*models.Listing, error) {
	links = uniqueLinks(links)
	var out []*models.Listing

	for i := 0; i < len(links); i += lookupChunk {
		end := i + lookupChunk
		if end > len(links) {
			end = len(links)
		}
		chunk := links[i:end]

		marks := make([]string, len(chunk))
		args := make([]interface{}, len(chunk))
		for j, link := range chunk {
			marks[j] = s.dialect.placeholder(j + 1)
			args[j] = link
		}

		query := `SELECT link, area FROM ` + tableName + ` WHERE link IN (` + strings.Join(marks, ",") + `)`
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("%s: lookup: %w", s.dialect.name, err)
		}
		for rows.Next() {
			l := &models.Listing{}
			if err := rows.Scan(&l.Link, &l.Area); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%s: scan lookup row: %w", s.dialect.name, err)
			}
			out = append(out, l)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: lookup: %w", s.dialect.name, err)
		}
	}
	return out, nil
}

// Insert writes new listings inside one transaction.
func (s *sqlStore) Insert(ctx context.Context, listings []*models.Listing) (int, error) {
	return s.upsert(ctx, "insert", listings)
}

// Update overwrites existing listings inside one transaction.
func (s *sqlStore) Update(ctx context.Context, listings []*models.Listing) (int, error) {
	return s.upsert(ctx, "update", listings)
}

// upsert runs one statement per listing so that repeated links in the same
// call are applied in order; a single multi-row upsert cannot touch the
// same row twice.
func (s *sqlStore) upsert(ctx context.Context, op string, listings []*models.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: begin: %w", s.dialect.name, op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, s.upsertQuery())
	if err != nil {
		return 0, fmt.Errorf("%s: %s: prepare: %w", s.dialect.name, op, err)
	}
	defer stmt.Close()

	now := s.now()
	written := 0
	for i, l := range listings {
		if l == nil {
			continue
		}
		// Keep newest-first ordering stable for rows written in one call.
		created := dbTime(now.Add(time.Duration(i) * time.Microsecond))
		args := append(listingArgs(l), created)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("%s: %s %s: %w", s.dialect.name, op, l.Link, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %s: commit: %w", s.dialect.name, op, err)
	}
	return written, nil
}

func (s *sqlStore) upsertQuery() string {
	cols := append(append([]string{}, listingColumns...), "created_at")
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = s.dialect.placeholder(i + 1)
	}

	sets := make([]string, 0, len(listingColumns)-1)
	for _, c := range listingColumns {
		if c == "link" {
			continue
		}
		sets = append(sets, c+" = excluded."+c)
	}

	return `INSERT INTO ` + tableName + ` (` + strings.Join(cols, ", ") + `)
		VALUES (` + strings.Join(marks, ", ") + `)
		ON CONFLICT (link) DO UPDATE SET ` + strings.Join(sets, ", ")
}

// FetchAll retrieves every stored listing, newest first.
func (s *sqlStore) FetchAll(ctx context.Context) ([]*models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, `+strings.Join(listingColumns, ", ")+`, created_at
		FROM `+tableName+`
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch all: %w", s.dialect.name, err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		var created dbTime
		if err := rows.Scan(
			&l.ID, &l.PropertyName, &l.Price, &l.BHK, &l.Locality, &l.Area,
			&l.Developer, &l.Status, &l.RegDate, &l.Link, &l.PropertyType,
			&l.City, &l.Furnishing, &l.Fomo, &l.Source, &l.IsNew, &created,
		); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.dialect.name, err)
		}
		l.CreatedAt = time.Time(created)
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Clear deletes all listings.
func (s *sqlStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+tableName); err != nil {
		return fmt.Errorf("%s: clear: %w", s.dialect.name, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func listingArgs(l *models.Listing) []interface{} {
	return []interface{}{
		l.PropertyName, l.Price, l.BHK, l.Locality, l.Area, l.Developer, l.Status,
		l.RegDate, l.Link, l.PropertyType, l.City, l.Furnishing, l.Fomo, l.Source, l.IsNew,
	}
}

func uniqueLinks(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// dbTime stores timestamps as UTC unix nanoseconds and reads back whatever
// the driver hands over: time.Time from Postgres, int64 from SQLite.
type dbTime time.Time

var (
	_ driver.Valuer = dbTime{}
	_ sql.Scanner   = (*dbTime)(nil)
)

// Value implements driver.Valuer.
func (t dbTime) Value() (driver.Value, error) {
	return time.Time(t).UTC().UnixNano(), nil
}

// Scan implements sql.Scanner.
func (t *dbTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = dbTime(time.Time{})
	case time.Time:
		*t = dbTime(v)
	case int64:
		*t = dbTime(time.Unix(0, v).UTC())
	case []byte:
		return t.Scan(string(v))
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*t = dbTime(time.Unix(0, n).UTC())
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return fmt.Errorf("dbTime: cannot parse %q: %w", v, err)
		}
		*t = dbTime(parsed)
	default:
		return fmt.Errorf("dbTime: unsupported type %T", src)
	}
	return nil
}
