// Package marsdata defines the aggregate Mars record and the document store
// that keeps the latest one.
package marsdata

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Collection is the name under which the record is kept.
const Collection = "mars"

// Store keeps a single Record as a JSON document in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new store with the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the documents table if it doesn't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored record, or nil if nothing has been stored yet.
func (s *Store) Get() (*Record, error) {
	query := "SELECT body FROM documents WHERE collection = ?"

	var body string
	err := s.db.QueryRow(query, Collection).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil // Empty store (not an error)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(body), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &record, nil
}

// Upsert replaces the stored record with record, creating it if absent.
func (s *Store) Upsert(record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	query := "INSERT OR REPLACE INTO documents (collection, body, updated_at) VALUES (?, ?, ?)"
	_, err = s.db.Exec(query, Collection, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}

	return nil
}
