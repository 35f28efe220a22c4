// Package history keeps the tape of evaluated results per calculator session.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Entry is one evaluated expression on a session's tape.
type Entry struct {
	SessionID  string    `json:"-"`
	Expression string    `json:"expression"`
	Result     int64     `json:"result"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is a SQLite backed tape.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the tape at dsn and makes sure the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tape (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			expression TEXT NOT NULL,
			result INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create table tape: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS tape_session_idx ON tape (session_id, id)`)
	if err != nil {
		return fmt.Errorf("create tape index: %w", err)
	}

	return nil
}

// Record appends e to the tape. A zero CreatedAt is stamped with the current time.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tape (session_id, expression, result, created_at) VALUES (?, ?, ?, ?)`,
		e.SessionID, e.Expression, e.Result, e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record tape entry: %w", err)
	}
	return nil
}

// List returns the session's entries, oldest first.
func (s *Store) List(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, expression, result, created_at FROM tape WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tape entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.SessionID, &e.Expression, &e.Result, &created); err != nil {
			return nil, fmt.Errorf("scan tape entry: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse tape timestamp %q: %w", created, err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tape entries: %w", err)
	}
	return entries, nil
}

// DeleteSession drops every entry of the session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tape WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete tape entries: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
