package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// Memory is an in-process Store backed by bigcache. Entries expire after the
// lifetime given to NewMemory; the per-call ttl is ignored.
type Memory struct {
	cache *bigcache.BigCache
}

var _ Store = (*Memory)(nil)

// NewMemory creates an in-process cache whose entries live for lifetime.
func NewMemory(ctx context.Context, lifetime time.Duration) (*Memory, error) {
	cfg := bigcache.DefaultConfig(lifetime)
	cfg.Verbose = false
	c, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &Memory{cache: c}, nil
}

// Get returns value or nil if missing.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	if m == nil || m.cache == nil {
		return nil, nil
	}
	res, err := m.cache.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, nil
	}
	return res, nil
}

// Set stores value until the cache lifetime elapses.
func (m *Memory) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if m == nil || m.cache == nil {
		return nil
	}
	return m.cache.Set(key, value)
}

// Delete removes a key.
func (m *Memory) Delete(_ context.Context, key string) error {
	if m == nil || m.cache == nil {
		return nil
	}
	if err := m.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return err
	}
	return nil
}

// Close stops the cache cleanup goroutine.
func (m *Memory) Close() error {
	if m == nil || m.cache == nil {
		return nil
	}
	return m.cache.Close()
}
