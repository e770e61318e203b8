package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/itemdesk/internal/apperr"
)

const kvSchemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLite implements Provider on a single kv table.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the SQLite database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	// SQLite allows a single writer.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(kvSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Get returns the value stored under key.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("storage: get %s: %w", key, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return v, nil
}

// Set upserts the value stored under key.
func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Keys returns every stored key.
func (s *SQLite) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("storage: keys: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

var _ Provider = (*SQLite)(nil)
