package cache

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Local is an in-process TTL cache. Values are stored encoded so callers never share memory.
type Local struct {
	cache   map[string]*localEntry
	mu      sync.RWMutex
	maxSize int
	ttl     time.Duration
	hits    int64
	misses  int64
	now     func() time.Time
}

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// LocalConfig configures the in-process cache
type LocalConfig struct {
	MaxSize int
	TTL     time.Duration
}

// DefaultLocalConfig returns sensible defaults
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		MaxSize: 10000,
		TTL:     10 * time.Minute,
	}
}

// NewLocal creates a new in-process cache
func NewLocal(config LocalConfig) *Local {
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultLocalConfig().MaxSize
	}
	if config.TTL <= 0 {
		config.TTL = DefaultLocalConfig().TTL
	}
	return &Local{
		cache:   make(map[string]*localEntry),
		maxSize: config.MaxSize,
		ttl:     config.TTL,
		now:     time.Now,
	}
}

func (c *Local) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return false, nil
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return true, json.Unmarshal(entry.value, dest)
}

func (c *Local) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[key]; !exists && len(c.cache) >= c.maxSize {
		c.evictHalf()
	}
	c.cache[key] = &localEntry{value: b, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *Local) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.cache, key)
	c.mu.Unlock()
	return nil
}

// evictHalf removes half the entries (must be called with lock held)
func (c *Local) evictHalf() {
	count := 0
	target := len(c.cache) / 2
	if target == 0 {
		target = 1
	}
	for key := range c.cache {
		delete(c.cache, key)
		count++
		if count >= target {
			break
		}
	}
}

// Stats are cache statistics
type Stats struct {
	Size   int
	Hits   int64
	Misses int64
}

func (c *Local) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Size:   len(c.cache),
		Hits:   c.hits,
		Misses: c.misses,
	}
}
