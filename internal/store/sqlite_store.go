package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one frame of a forwarding session.
type Record struct {
	Session   string
	Seq       int
	Direction string
	Payload   string
	Time      time.Time
}

// Store persists session transcripts.
type Store interface {
	// Save stores records in a single transaction. Saving the same
	// (session, seq, direction) twice replaces the payload.
	Save(records ...Record) error

	// Load returns the records of a session ordered by seq, sent before received.
	Load(session string) ([]Record, error)

	// Sessions lists known session ids, most recent first.
	Sessions() ([]string, error)

	// Close closes the store and releases any resources
	Close() error
}

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based store with migrations
func NewSQLiteStore(dbPath string) (Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := ensureDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create directory for database: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Save(records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO exchanges (session, seq, direction, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session, seq, direction) DO UPDATE SET
		 payload = excluded.payload,
		 created_at = excluded.created_at`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.Exec(r.Session, r.Seq, r.Direction, r.Payload, r.Time.UTC()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to save record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

func (s *sqliteStore) Load(session string) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT session, seq, direction, payload, created_at FROM exchanges
		 WHERE session = ?
		 ORDER BY seq, CASE direction WHEN 'sent' THEN 0 ELSE 1 END`,
		session)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Session, &r.Seq, &r.Direction, &r.Payload, &r.Time); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Sessions() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT session FROM exchanges GROUP BY session ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// ensureDir makes sure a directory exists
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
