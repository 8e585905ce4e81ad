// Package audit keeps a local trail of operator actions (config saves,
// applies, SSH key changes, update installs) in SQLite. Recording is
// best-effort: callers log audit failures but never fail the operator's
// action over them.
package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// Kind classifies an audited action.
type Kind string

const (
	KindConfigSave    Kind = "config_save"
	KindConfigApply   Kind = "config_apply"
	KindSSHKeyAdd     Kind = "ssh_key_add"
	KindSSHKeyRemove  Kind = "ssh_key_remove"
	KindUpdateInstall Kind = "update_install"
)

// Event is one recorded action.
type Event struct {
	ID     string
	Time   time.Time
	Kind   Kind
	Detail string
	OK     bool
}

// Store persists audit events.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the audit database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	if _, err := db.Exec(migrationV1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating audit database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one event.
func (s *Store) Record(ctx context.Context, kind Kind, detail string, ok bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, created_at, kind, detail, ok) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), time.Now().UTC().Format(time.RFC3339Nano), string(kind), detail, boolToInt(ok))
	if err != nil {
		return fmt.Errorf("recording audit event: %w", err)
	}
	return nil
}

// Recent returns the latest events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, kind, detail, ok FROM events ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e  Event
			ts string
			ok int
		)
		if err := rows.Scan(&e.ID, &ts, (*string)(&e.Kind), &e.Detail, &ok); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		e.Time, _ = time.Parse(time.RFC3339Nano, ts)
		e.OK = ok != 0
		events = append(events, e)
	}
	return events, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
