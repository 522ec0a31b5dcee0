package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Driver selects the database backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Store is the persistence layer for the question bank, exam configs and
// generated exam records.
type Store struct {
	db     *sql.DB
	driver Driver
}

// New opens the database for the given driver and ensures the schema exists.
func New(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "examgen.db"
		}
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/examgen?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %q", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps writes serialized and makes :memory: databases usable.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	return dsn
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the backend the store was opened with.
func (s *Store) Driver() Driver {
	return s.driver
}

func (s *Store) migrate(ctx context.Context) error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS subjects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS topics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id INTEGER NOT NULL REFERENCES subjects(id),
	name TEXT NOT NULL,
	UNIQUE (subject_id, name)
);

CREATE TABLE IF NOT EXISTS questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topic_id INTEGER NOT NULL REFERENCES topics(id),
	text TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_questions_topic ON questions(topic_id);

CREATE TABLE IF NOT EXISTS question_options (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	is_correct BOOLEAN NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_options_question ON question_options(question_id);

CREATE TABLE IF NOT EXISTS exam_configs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id INTEGER NOT NULL REFERENCES subjects(id),
	fraction INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS topic_configs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	exam_config_id INTEGER NOT NULL REFERENCES exam_configs(id) ON DELETE CASCADE,
	topic_id INTEGER NOT NULL REFERENCES topics(id),
	num_questions INTEGER NOT NULL CHECK (num_questions >= 0),
	relative_weight REAL NOT NULL DEFAULT 1.0
);

CREATE TABLE IF NOT EXISTS exams (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	exam_config_id INTEGER NOT NULL REFERENCES exam_configs(id) ON DELETE CASCADE,
	variation INTEGER NOT NULL,
	content_json TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exams_config ON exams(exam_config_id);

CREATE TABLE IF NOT EXISTS imported_files (
	path TEXT PRIMARY KEY,
	sha256 TEXT NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS subjects (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS topics (
	id BIGSERIAL PRIMARY KEY,
	subject_id BIGINT NOT NULL REFERENCES subjects(id),
	name TEXT NOT NULL,
	UNIQUE (subject_id, name)
);

CREATE TABLE IF NOT EXISTS questions (
	id BIGSERIAL PRIMARY KEY,
	topic_id BIGINT NOT NULL REFERENCES topics(id),
	text TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_questions_topic ON questions(topic_id);

CREATE TABLE IF NOT EXISTS question_options (
	id BIGSERIAL PRIMARY KEY,
	question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	is_correct BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_options_question ON question_options(question_id);

CREATE TABLE IF NOT EXISTS exam_configs (
	id BIGSERIAL PRIMARY KEY,
	subject_id BIGINT NOT NULL REFERENCES subjects(id),
	fraction INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS topic_configs (
	id BIGSERIAL PRIMARY KEY,
	exam_config_id BIGINT NOT NULL REFERENCES exam_configs(id) ON DELETE CASCADE,
	topic_id BIGINT NOT NULL REFERENCES topics(id),
	num_questions INTEGER NOT NULL CHECK (num_questions >= 0),
	relative_weight DOUBLE PRECISION NOT NULL DEFAULT 1.0
);

CREATE TABLE IF NOT EXISTS exams (
	id BIGSERIAL PRIMARY KEY,
	exam_config_id BIGINT NOT NULL REFERENCES exam_configs(id) ON DELETE CASCADE,
	variation INTEGER NOT NULL,
	content_json TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exams_config ON exams(exam_config_id);

CREATE TABLE IF NOT EXISTS imported_files (
	path TEXT PRIMARY KEY,
	sha256 TEXT NOT NULL
);
`
