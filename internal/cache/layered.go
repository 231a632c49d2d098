package cache

import (
	"errors"
	"time"
)

// LayeredCache implements a two-layer cache: a fast front layer over a persistent back layer
type LayeredCache struct {
	front    Cache
	back     Cache
	frontTTL time.Duration
}

// NewLayeredCache creates a new layered cache. Values found only in the back layer are
// promoted to the front layer with frontTTL.
func NewLayeredCache(front, back Cache, frontTTL time.Duration) *LayeredCache {
	return &LayeredCache{front: front, back: back, frontTTL: frontTTL}
}

// Get retrieves a value (checks the front layer first, then the back layer)
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.front.Get(key); found {
		return val, true
	}

	if val, found := c.back.Get(key); found {
		_ = c.front.Set(key, val, c.frontTTL)
		return val, true
	}

	return nil, false
}

// Set stores a value in both layers
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	frontTTL := c.frontTTL
	if ttl > 0 && (frontTTL == 0 || ttl < frontTTL) {
		frontTTL = ttl
	}
	if err := c.front.Set(key, value, frontTTL); err != nil {
		return err
	}
	return c.back.Set(key, value, ttl)
}

// Delete removes a value from both layers
func (c *LayeredCache) Delete(key string) error {
	return errors.Join(c.front.Delete(key), c.back.Delete(key))
}

// Clear removes all values from both layers
func (c *LayeredCache) Clear() error {
	return errors.Join(c.front.Clear(), c.back.Clear())
}
