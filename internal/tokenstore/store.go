package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// KeySuffix is appended to the endpoint URL to form the storage key.
const KeySuffix = "_tokenInfo"

// Store persists at most one Record per key.
//
// SECURITY: implementations must never log token values.
type Store interface {
	// Get returns the record stored under key, or (nil, nil) when absent.
	Get(ctx context.Context, key string) (*Record, error)

	// Set replaces the record stored under key. The refresh token is only
	// written when the record is remembered.
	Set(ctx context.Context, key string, rec *Record) error

	// Remove deletes the record stored under key. Removing an absent key is
	// not an error.
	Remove(ctx context.Context, key string) error
}

// Key returns the storage key for an OAuth endpoint.
func Key(endpoint string) string {
	return endpoint + KeySuffix
}

func encode(rec *Record) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("cannot store a nil record")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token record: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token record: %w", err)
	}
	return &rec, nil
}
