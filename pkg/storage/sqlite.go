package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	_ "modernc.org/sqlite"
)

// SQLite implements Database on a local SQLite file.
type SQLite struct {
	path string
	conn *sql.DB
}

var _ Database = (*SQLite)(nil)

func configuredSQLite() *SQLite {
	path := lflag.String("sqlite-path", "energiwatch.db", "Path of the SQLite database file")

	s := &SQLite{}
	lflag.Do(func() {
		s.path = *path
	})
	return s
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	s := &SQLite{path: path}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks if the provider is properly configured.
func (s *SQLite) Validate() error {
	if s.path == "" {
		return errors.New("sqlite-path is required")
	}
	return nil
}

// Init opens the connection and creates the schema.
func (s *SQLite) Init(ctx context.Context) error {
	conn, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database %s: %w", s.path, err)
	}
	// a single writer avoids SQLITE_BUSY between concurrent requests
	conn.SetMaxOpenConns(1)

	_, err = conn.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}
	s.conn = conn
	return nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return []byte(value), nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.conn.ExecContext(ctx, `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(value), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLite) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
