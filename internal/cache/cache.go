package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
)

// CountsKey is the fixed key under which count snapshots are stored.
const CountsKey = "honors/counts"

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Backends lists the valid backend names.
var Backends = []string{BackendSQLite, BackendBadger, BackendMemory}

// Cache is an opaque persistent key-value store.
type Cache interface {
	// Get returns the value stored under key. ok is false if there is none.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Backend is one of Backends. Empty means sqlite.
	Backend string
	// Dir holds the backend's files. Ignored by the memory backend.
	Dir string
	// Logger receives backend diagnostics. May be nil.
	Logger *slog.Logger
}

// ValidBackend reports whether name is a known backend.
func ValidBackend(name string) bool {
	return name == "" || slices.Contains(Backends, name)
}

// Open opens the configured backend.
func Open(cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", BackendSQLite:
		return OpenSQLite(filepath.Join(cfg.Dir, "honors.db"))
	case BackendBadger:
		return OpenBadger(BadgerConfig{Path: filepath.Join(cfg.Dir, "badger"), SyncWrites: true, Logger: cfg.Logger})
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q: must be one of %v", cfg.Backend, Backends)
	}
}

// GetJSON decodes the value under key into dst. If the key is absent dst is
// left untouched, so callers preset it with their default.
func GetJSON(ctx context.Context, c Cache, key string, dst any) (bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return c.Set(ctx, key, data)
}

// Memory is an in-process Cache. Values do not survive Close.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return slices.Clone(v), ok, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = slices.Clone(value)
	return nil
}

// Close implements Cache.
func (m *Memory) Close() error { return nil }
