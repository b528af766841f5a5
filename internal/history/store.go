// Package history persists a local record of notifications shown and
// commands invoked, backing the notification-history view.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"nodelink/internal/domain"
)

// Entry is one history record.
type Entry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"` // "notification" or "invoke"
	Title     string    `json:"title,omitempty"`
	Body      string    `json:"body,omitempty"`
	Command   string    `json:"command,omitempty"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a SQLite-backed history store.
type Store struct {
	db      *sql.DB
	maxRows int
}

// Open opens (or creates) the history database at dbPath and runs the
// schema migration. maxRows <= 0 disables pruning.
func Open(dbPath string, maxRows int) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db, maxRows: maxRows}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			id         TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			title      TEXT NOT NULL DEFAULT '',
			body       TEXT NOT NULL DEFAULT '',
			command    TEXT NOT NULL DEFAULT '',
			ok         INTEGER NOT NULL DEFAULT 1,
			error      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordNotification stores a shown notification. Implements
// capability.NotificationRecorder.
func (s *Store) RecordNotification(ctx context.Context, n domain.Notification) error {
	return s.insert(ctx, Entry{
		Kind:  "notification",
		Title: n.Title,
		Body:  n.Body,
		OK:    true,
	})
}

// RecordInvoke stores the outcome of a dispatched command.
func (s *Store) RecordInvoke(ctx context.Context, req domain.InvokeRequest, resp domain.InvokeResponse) error {
	return s.insert(ctx, Entry{
		Kind:    "invoke",
		Command: req.Command,
		OK:      resp.OK,
		Error:   resp.Error,
	})
}

func (s *Store) insert(ctx context.Context, e Entry) error {
	e.ID = newID()
	e.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO history (id, kind, title, body, command, ok, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.Kind, e.Title, e.Body, e.Command, boolToInt(e.OK), e.Error,
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return s.prune(ctx)
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, kind, title, body, command, ok, error, created_at FROM history ORDER BY created_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ok int
		var created string
		if err := rows.Scan(&e.ID, &e.Kind, &e.Title, &e.Body, &e.Command, &ok, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.OK = ok != 0
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// prune drops the oldest rows beyond maxRows.
func (s *Store) prune(ctx context.Context) error {
	if s.maxRows <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM history WHERE id IN (
			SELECT id FROM history ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?
		)`, s.maxRows)
	return err
}

func newID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
