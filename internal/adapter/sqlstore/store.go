// Package sqlstore reads raw garage samples from, and writes normalized
// records to, a SQL database. PostgreSQL (lib/pq) and SQLite (go-sqlite3)
// are supported with the same schema and queries.
//
// Timestamps are stored as UTC instants: TIMESTAMPTZ on PostgreSQL and
// fixed-width UTC text on SQLite, so ordering and range predicates behave
// the same on both. Rows are converted back to the civil zone on the way out.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/parking-norm-etl/internal/domain"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// sqliteTimeLayout is fixed width so text comparison orders instants.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// Store is a SQL-backed raw sample source and normalized record store.
// It implements pipeline.RawSource, pipeline.NormalizedStore and
// pipeline.RecordGetter.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database, waits for it to answer and creates the
// schema if needed. dsn is a PostgreSQL connection string or a SQLite path
// (":memory:" for an in-memory database).
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverPostgres:
		db, err = sql.Open("postgres", dsn)
	case DriverSQLite:
		db, err = sql.Open("sqlite3", dsn)
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if driver == DriverSQLite {
		// Every :memory: connection is its own database, and SQLite
		// serializes writers anyway.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, driver: driver}
	if err := s.waitForDB(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) waitForDB(ctx context.Context) error {
	const attempts = 10
	var err error
	for i := range attempts {
		if err = s.db.PingContext(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return fmt.Errorf("sqlstore: ping failed after retries: %w", err)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.driver == DriverSQLite {
		schema = sqliteSchema
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS garages (
		id   INTEGER PRIMARY KEY,
		name TEXT    NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS garage_monitor_data (
		id          BIGSERIAL   PRIMARY KEY,
		garage_id   INTEGER     NOT NULL REFERENCES garages(id),
		available   INTEGER,
		capacity    INTEGER,
		recorded_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_monitor_garage_time
		ON garage_monitor_data(garage_id, recorded_at);

	CREATE TABLE IF NOT EXISTS normalized_parking_data (
		id         BIGSERIAL   PRIMARY KEY,
		garage_id  INTEGER     NOT NULL,
		available  INTEGER     NOT NULL,
		capacity   INTEGER     NOT NULL,
		hour_start TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_normalized_garage_hour
		ON normalized_parking_data(garage_id, hour_start);
`

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS garages (
		id   INTEGER PRIMARY KEY,
		name TEXT    NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS garage_monitor_data (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		garage_id   INTEGER NOT NULL REFERENCES garages(id),
		available   INTEGER,
		capacity    INTEGER,
		recorded_at TEXT    NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_monitor_garage_time
		ON garage_monitor_data(garage_id, recorded_at);

	CREATE TABLE IF NOT EXISTS normalized_parking_data (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		garage_id  INTEGER NOT NULL,
		available  INTEGER NOT NULL,
		capacity   INTEGER NOT NULL,
		hour_start TEXT    NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_normalized_garage_hour
		ON normalized_parking_data(garage_id, hour_start);
`

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeArg converts t to the driver's stored representation.
func (s *Store) timeArg(t time.Time) any {
	if s.driver == DriverSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// scanTime converts a scanned timestamp column to the civil zone.
func scanTime(query, column string, src any) (time.Time, error) {
	var (
		t   time.Time
		err error
	)
	switch v := src.(type) {
	case time.Time:
		t = v
	case string:
		t, err = parseStoredTime(v)
	case []byte:
		t, err = parseStoredTime(string(v))
	case nil:
		return time.Time{}, &domain.MalformedResultError{Query: query, Column: column, Reason: "null timestamp"}
	default:
		return time.Time{}, &domain.MalformedResultError{Query: query, Column: column, Reason: fmt.Sprintf("unexpected type %T", src)}
	}
	if err != nil {
		return time.Time{}, &domain.MalformedResultError{Query: query, Column: column, Reason: err.Error()}
	}
	return t.In(domain.Location()), nil
}

func parseStoredTime(s string) (time.Time, error) {
	if t, err := time.Parse(sqliteTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// scanCount validates a nullable integer column.
func scanCount(query, column string, v sql.NullInt64) (int, error) {
	if !v.Valid {
		return 0, &domain.MalformedResultError{Query: query, Column: column, Reason: "null value"}
	}
	if v.Int64 < 0 {
		return 0, &domain.MalformedResultError{Query: query, Column: column, Reason: fmt.Sprintf("negative value %d", v.Int64)}
	}
	return int(v.Int64), nil
}
