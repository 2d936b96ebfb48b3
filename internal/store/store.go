// Package store persists cases, parties, hearings and the audit trail in
// a SQLite database. Every mutation writes its audit entry in the same
// transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"audiencier/internal/clock"
	appLog "audiencier/internal/log"
	"audiencier/internal/model"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique key, such as a case
	// reference, is already taken.
	ErrDuplicate = errors.New("store: duplicate")
)

const schema = `
CREATE TABLE IF NOT EXISTS cases (
	id            TEXT PRIMARY KEY,
	reference     TEXT NOT NULL UNIQUE,
	title         TEXT NOT NULL,
	jurisdiction  TEXT NOT NULL,
	chamber       TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	decision_date INTEGER,
	appeal_days   INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS parties (
	id      TEXT PRIMARY KEY,
	case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
	name    TEXT NOT NULL,
	role    TEXT NOT NULL,
	lawyer  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_parties_case ON parties(case_id);

CREATE TABLE IF NOT EXISTS hearings (
	id      TEXT PRIMARY KEY,
	case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
	date    INTEGER NOT NULL,
	room    TEXT NOT NULL DEFAULT '',
	status  TEXT NOT NULL,
	notes   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_hearings_date ON hearings(date);
CREATE INDEX IF NOT EXISTS idx_hearings_case ON hearings(case_id);

CREATE TABLE IF NOT EXISTS audit_log (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	at        INTEGER NOT NULL,
	actor     TEXT NOT NULL,
	action    TEXT NOT NULL,
	entity    TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	details   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_at ON audit_log(at);
`

// Store is safe for concurrent use; SQLite access is serialized through
// a single connection.
type Store struct {
	db    *sql.DB
	path  string
	clock clock.Clock
	loc   *time.Location
}

// Open creates (if needed) and opens the database at path. Times read
// back are expressed in loc (time.Local when nil).
func Open(path string, clk clock.Clock, loc *time.Location) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: database path is empty")
	}
	if clk == nil {
		clk = clock.Real()
	}
	if loc == nil {
		loc = time.Local
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}

	// foreign_keys is per connection, so it goes in the DSN as well.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			appLog.Debug("sqlite pragma failed", "pragma", pragma, "err", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}

	appLog.Info("store opened", "path", path)
	return &Store{db: db, path: path, clock: clk, loc: loc}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type actorKey struct{}

// WithActor tags ctx with the name recorded in audit entries.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor set by WithActor, or "system".
func ActorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return "system"
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (s *Store) audit(ctx context.Context, tx *sql.Tx, action model.AuditAction, entity model.AuditEntity, id, details string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (at, actor, action, entity, entity_id, details) VALUES (?, ?, ?, ?, ?, ?)`,
		s.clock.Now().UnixMilli(), ActorFrom(ctx), string(action), string(entity), id, details,
	)
	if err != nil {
		return fmt.Errorf("store: write audit entry: %w", err)
	}
	return nil
}

func (s *Store) fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).In(s.loc)
}

// translate maps SQLite constraint errors onto the package sentinels.
func translate(err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %w", ErrDuplicate, err)
		}
	}
	return err
}

// requireRow turns a zero-rows result into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}
