// Package kv is the key-value store shared by the gateway and chatbot layers
// for quotas, conversation memory, chat state and idempotency markers.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a key is missing or expired.
	ErrNotFound = errors.New("kv: key not found")
	// ErrLockTimeout is returned when a lock could not be acquired before ctx ended.
	ErrLockTimeout = errors.New("kv: lock not acquired")
)

// IsNotFound reports whether err is a miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store is a TTL key-value store with per-key locks. A zero TTL means no expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Incr increments a counter and starts its TTL on the first increment.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Lock blocks until key is held or ctx is done. ttl bounds how long a
	// crashed holder can keep the lock where the backend supports it.
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
	Close() error
}

// GetJSON decodes the value at key into v.
func GetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("GetJSON: decode %q: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("SetJSON: encode %q: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}
