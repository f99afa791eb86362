package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/quantmind-br/readtree-go/internal/domain"
)

// SimpleMockCache is an in-memory domain.Cache for tests that care about
// stored values rather than call expectations
type SimpleMockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

var _ domain.Cache = (*SimpleMockCache)(nil)

// NewSimpleMockCache creates an empty SimpleMockCache
func NewSimpleMockCache() *SimpleMockCache {
	return &SimpleMockCache{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (c *SimpleMockCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return v, nil
}

func (c *SimpleMockCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), value...)
	c.ttls[key] = ttl
	return nil
}

func (c *SimpleMockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	delete(c.ttls, key)
	return nil
}

func (c *SimpleMockCache) Close() error { return nil }

// Keys returns the number of stored keys
func (c *SimpleMockCache) Keys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// TTL returns the ttl key was last stored with
func (c *SimpleMockCache) TTL(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttls[key]
}
