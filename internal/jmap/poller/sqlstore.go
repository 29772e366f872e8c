package poller

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const createStateTable = `
CREATE TABLE IF NOT EXISTS poll_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLStore persists poll state in a SQLite database so watermarks
// survive process restarts.
type SQLStore struct {
	db *sqlx.DB
}

// OpenSQLStore opens (creating if needed) a SQLite-backed state store
// at the given path.
func OpenSQLStore(path string) (*SQLStore, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if _, err := db.Exec(createStateTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create state table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Get returns the stored value, or "" when the key is absent.
func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM poll_state WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read state %q: %w", key, err)
	}
	return value, nil
}

// Set stores a value under the key.
func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO poll_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write state %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
