package tokenstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultStorageDir is the default directory, relative to the home directory,
// for storing token records.
const DefaultStorageDir = ".config/tokensession/tokens"

// FileStore persists each record as a JSON file.
//
// SECURITY: This store handles sensitive OAuth credentials. The following
// security measures are implemented:
//   - Files are created with 0600 permissions (owner read/write only)
//   - Storage directory is created with 0700 permissions (owner only)
//   - Token values are NEVER logged (only keys and usernames)
//   - Refresh tokens are only written for remembered sessions
type FileStore struct {
	mu         sync.Mutex
	storageDir string
	logger     *slog.Logger
}

// FileStoreConfig configures the file store.
type FileStoreConfig struct {
	// StorageDir is the directory for token files.
	// Defaults to ~/.config/tokensession/tokens
	StorageDir string

	// Logger receives the security audit log lines. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewFileStore creates the storage directory if needed and returns a store.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	storageDir := cfg.StorageDir
	if storageDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		storageDir = filepath.Join(homeDir, DefaultStorageDir)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(storageDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token storage directory: %w", err)
	}

	return &FileStore{storageDir: storageDir, logger: logger}, nil
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string {
	return s.storageDir
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// #nosec G304 -- path is derived from a hash of the key, not user input
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	return decode(data)
}

// Set implements Store.
// SECURITY: Token values are never logged.
func (s *FileStore) Set(_ context.Context, key string, rec *Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path(key), data, 0600); err != nil {
		s.logger.Warn("SECURITY_AUDIT: Token record storage failed",
			"event", "token_store_failed",
			"key", key,
			"error", err.Error(),
		)
		return fmt.Errorf("failed to write token file: %w", err)
	}

	s.logger.Info("SECURITY_AUDIT: Token record stored",
		"event", "token_stored",
		"key", key,
		"username", rec.Username,
		"expiry", rec.AccessTokenExpiry.Format(time.RFC3339),
		"has_refresh_token", rec.RememberMe && rec.RefreshToken != "",
	)
	return nil
}

// Remove implements Store.
func (s *FileStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("SECURITY_AUDIT: Token record deletion failed",
			"event", "token_delete_failed",
			"key", key,
			"error", err.Error(),
		)
		return fmt.Errorf("failed to remove token file: %w", err)
	}

	s.logger.Info("SECURITY_AUDIT: Token record deleted",
		"event", "token_deleted",
		"key", key,
	)
	return nil
}

// path maps a key to a filesystem-safe file name: the first 16 bytes of its
// SHA-256 hash in hex.
func (s *FileStore) path(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(s.storageDir, hex.EncodeToString(hash[:16])+".json")
}
