package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MajorBarnulf/harsh/config"
)

// SQLiteFileName is the database file created inside the database path.
const SQLiteFileName = "harsh.db"

// SQLiteBackend stores keys in a single table of a sqlite database. Keys
// use the BINARY collation, so ORDER BY key is byte order.
type SQLiteBackend struct {
	conn *sql.DB
}

// OpenSQLite opens or creates the sqlite database inside cfg.DatabasePath.
func OpenSQLite(cfg config.StorageConfig) (*SQLiteBackend, error) {
	dsn := ":memory:"
	if !cfg.InMemory {
		if err := os.MkdirAll(cfg.DatabasePath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = filepath.Join(cfg.DatabasePath, SQLiteFileName) + "?_journal_mode=WAL"
		if cfg.SyncWrites {
			dsn += "&_synchronous=FULL"
		}
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	// one connection keeps an in-memory database alive and serializes writers
	conn.SetMaxOpenConns(1)

	query := `CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`
	if _, err := conn.Exec(query); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate sqlite store: %w", err)
	}

	return &SQLiteBackend{conn: conn}, nil
}

func (s *SQLiteBackend) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.conn.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error reading key %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteBackend) Set(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.conn.Exec(
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("error writing key %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteBackend) Delete(keys ...string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("error starting delete: %w", err)
	}
	for _, key := range keys {
		if _, err := tx.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
			tx.Rollback()
			return fmt.Errorf("error deleting key %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteBackend) Scan(prefix string) ([]string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if end, ok := prefixEnd(prefix); ok {
		rows, err = s.conn.Query("SELECT key FROM kv WHERE key >= ? AND key < ? ORDER BY key", prefix, end)
	} else {
		rows, err = s.conn.Query("SELECT key FROM kv WHERE key >= ? ORDER BY key", prefix)
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", prefix, err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *SQLiteBackend) Close() error {
	return s.conn.Close()
}

// prefixEnd returns the smallest string greater than every string that
// starts with prefix. It reports false when no such bound exists.
func prefixEnd(prefix string) (string, bool) {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return string(end[:i+1]), true
		}
	}
	return "", false
}
