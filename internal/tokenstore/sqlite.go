package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS token_records (
	key        TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLiteStore persists records in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLiteStore opens (creating if needed) the database at path and
// prepares the schema. Use ":memory:" for a throwaway database.
func OpenSQLiteStore(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create token_records table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM token_records WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token record: %w", err)
	}
	return decode([]byte(data))
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, key string, rec *Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO token_records (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, key, string(data), time.Now().UTC())
	if err != nil {
		s.logger.Warn("SECURITY_AUDIT: Token record storage failed",
			"event", "token_store_failed",
			"key", key,
			"error", err.Error(),
		)
		return fmt.Errorf("failed to set token record: %w", err)
	}

	s.logger.Info("SECURITY_AUDIT: Token record stored",
		"event", "token_stored",
		"key", key,
		"username", rec.Username,
		"has_refresh_token", rec.RememberMe && rec.RefreshToken != "",
	)
	return nil
}

// Remove implements Store.
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM token_records WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete token record: %w", err)
	}
	s.logger.Info("SECURITY_AUDIT: Token record deleted",
		"event", "token_deleted",
		"key", key,
	)
	return nil
}
