package cache

import (
	"context"
	"sync"
	"time"

	"sentinel/internal/ports"
)

// MemoryCache is a process-local TTL cache. It backs installation token
// caching, where losing entries on restart only costs a token refresh.
type MemoryCache struct {
	mu      sync.Mutex
	clock   ports.Clock
	entries map[string]entry
}

type entry struct {
	value     string
	expiresAt time.Time
}

var _ ports.Cache = (*MemoryCache)(nil)

func NewMemoryCache(clock ports.Clock) *MemoryCache {
	return &MemoryCache{
		clock:   clock,
		entries: make(map[string]entry),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		value:     value,
		expiresAt: c.clock.Now().Add(ttl),
	}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}
