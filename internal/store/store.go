package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Store struct {
	db     *sql.DB
	driver string
}

// New opens a SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	return Open(DriverSQLite, dbPath)
}

// Open connects to a SQLite file or a Postgres DSN and applies the schema.
func Open(driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = sql.Open("sqlite", dsn+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err == nil && strings.Contains(dsn, ":memory:") {
			// Every connection to :memory: is a separate database.
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tests (
		id {{serial}},
		kind TEXT NOT NULL,
		slug TEXT NOT NULL,
		title TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'draft',
		requires_oral_review BOOLEAN NOT NULL DEFAULT FALSE,
		oral_review_points DOUBLE PRECISION NOT NULL DEFAULT 0,
		questions TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (kind, slug)
	);

	CREATE TABLE IF NOT EXISTS results (
		id {{serial}},
		reference TEXT UNIQUE,
		kind TEXT NOT NULL,
		student_id TEXT NOT NULL,
		test_id BIGINT NOT NULL REFERENCES tests(id),
		attempt INTEGER NOT NULL DEFAULT 1,
		score DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_points DOUBLE PRECISION NOT NULL DEFAULT 0,
		percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
		answers TEXT NOT NULL,
		essay_marks TEXT NOT NULL DEFAULT '',
		oral_review_marks DOUBLE PRECISION,
		status TEXT NOT NULL,
		feedback TEXT NOT NULL DEFAULT '',
		submitted_at TIMESTAMP NOT NULL,
		graded_at TIMESTAMP,
		UNIQUE (kind, student_id, test_id, attempt)
	);

	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		cohort TEXT NOT NULL DEFAULT 'standard',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sequences (
		name TEXT PRIMARY KEY,
		value BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS grading_events (
		id TEXT PRIMARY KEY,
		result_id BIGINT NOT NULL REFERENCES results(id),
		essay_marks TEXT NOT NULL DEFAULT '',
		oral_review_marks DOUBLE PRECISION,
		score DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}
	_, err := s.db.Exec(strings.ReplaceAll(schema, "{{serial}}", serial))
	return err
}

// rebind rewrites ? placeholders into $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// isUniqueViolation reports whether err is a unique or primary key conflict.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
