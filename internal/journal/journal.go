// Package journal keeps a local record of payment events the ingestor
// could not process, so operators can reconcile them by hand. It is an
// operator aid only: entitlement decisions never read it.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed reconciliation journal.
type Store struct {
	db *sql.DB
}

// Entry is one flagged event awaiting manual review.
type Entry struct {
	ID               string
	PaymentReference string
	EventType        string
	Reason           string
	Payload          []byte
	CreatedAt        time.Time
	Resolved         bool
}

// Open opens (creating if needed) the journal database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS flagged_events (
			id TEXT PRIMARY KEY,
			payment_reference TEXT,
			event_type TEXT NOT NULL,
			reason TEXT NOT NULL,
			payload BLOB,
			created_at DATETIME NOT NULL,
			resolved INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_flagged_unresolved
			ON flagged_events(resolved, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate journal schema: %w", err)
	}
	return nil
}

// Flag records an unprocessable event. Implements core.Journal.
func (s *Store) Flag(paymentReference, eventType, reason string, payload []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO flagged_events (id, payment_reference, event_type, reason, payload, created_at, resolved)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		uuid.New().String(), paymentReference, eventType, reason, payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to flag event: %w", err)
	}
	return nil
}

// List returns flagged entries, newest first. With unresolvedOnly set it
// skips entries an operator already resolved.
func (s *Store) List(unresolvedOnly bool) ([]*Entry, error) {
	query := `SELECT id, payment_reference, event_type, reason, payload, created_at, resolved
	          FROM flagged_events`
	if unresolvedOnly {
		query += ` WHERE resolved = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var resolved int
		if err := rows.Scan(&e.ID, &e.PaymentReference, &e.EventType, &e.Reason, &e.Payload, &e.CreatedAt, &resolved); err != nil {
			return nil, err
		}
		e.Resolved = resolved != 0
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Resolve marks an entry as handled.
func (s *Store) Resolve(id string) error {
	res, err := s.db.Exec(`UPDATE flagged_events SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no journal entry with id %s", id)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
