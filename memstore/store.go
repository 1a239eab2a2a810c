// ABOUTME: Store interface and backend selection for conversation memory
// ABOUTME: Values are opaque strings (JSON session snapshots) keyed by namespaced keys

package memstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has no stored value.
var ErrNotFound = errors.New("key not found")

// Store is the memory-store capability used for per-session conversation
// records. Implementations must treat Set as a whole-record overwrite.
type Store interface {
	// Get returns the stored value, or ErrNotFound if the key is absent.
	Get(ctx context.Context, key string) (string, error)
	// Set creates or overwrites the value for key.
	Set(ctx context.Context, key, value string) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases any resources held by the store.
	Close() error
}

// Config selects and locates a store backend.
type Config struct {
	Backend string `yaml:"backend" toml:"backend"` // "memory", "sqlite", or "bolt"
	Path    string `yaml:"path" toml:"path"`       // file path for sqlite/bolt backends
}

// Open constructs a Store from config. An empty backend defaults to the
// in-memory store.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "bolt":
		return NewBoltStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
