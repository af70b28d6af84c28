package store

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// Store is the single writer over the planner SQLite database. All multi-step operations run
// inside one transaction; the pool is capped at one connection so SQLite's own transaction
// serialization is the only lock.
type Store struct {
	db   *sql.DB
	path string

	// Clock returns the current time. It also defines "today" for date-derived scopes.
	Clock func() time.Time
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func DefaultPath() (string, error) {
	if v := strings.TrimSpace(os.Getenv("PLANNER_HOME")); v != "" {
		return filepath.Join(v, "planner.sqlite"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".planner", "planner.sqlite"), nil
}

func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite". Pragmas ride on the DSN so every
	// connection gets them; _txlock=immediate makes BEGIN take the write lock up front, so
	// read-then-write transactions from separate processes queue on busy_timeout instead
	// of failing with SQLITE_BUSY_SNAPSHOT.
	db, err := sql.Open("sqlite", dsn(abs))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, Clock: time.Now}, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	for _, p := range []string{"busy_timeout(5000)", "journal_mode(WAL)", "synchronous(NORMAL)", "foreign_keys(1)"} {
		q.Add("_pragma", p)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: q.Encode()}
	return u.String()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string { return s.path }

func (s *Store) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func (s *Store) today() string { return s.now().Format(dateLayout) }

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS areas (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_at_unixms INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL,
			deleted_at_unixms INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			notes TEXT NOT NULL,
			status TEXT NOT NULL,
			area_id TEXT,
			completed_at_unixms INTEGER,
			created_at_unixms INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL,
			deleted_at_unixms INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_projects_area ON projects(area_id);`,
		`CREATE TABLE IF NOT EXISTS sections (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at_unixms INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL,
			deleted_at_unixms INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sections_project ON sections(project_id);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			notes TEXT NOT NULL,
			status TEXT NOT NULL,
			project_id TEXT,
			section_id TEXT,
			area_id TEXT,
			schedule_date TEXT,
			tags_json TEXT NOT NULL,
			completed_at_unixms INTEGER,
			created_at_unixms INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL,
			deleted_at_unixms INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id, section_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_area ON tasks(area_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_sched ON tasks(schedule_date);`,
		`CREATE TABLE IF NOT EXISTS ranks (
			scope_id TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			rank INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL,
			PRIMARY KEY(scope_id, entity_id)
		);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func toUnixMs(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromUnixMs(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnixMs(n.Int64)
	return &t
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toUnixMs(*t)
}

func nullStr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func strArg(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
