package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/worker"
	"golang.org/x/sync/singleflight"
)

// Cached wraps an embedder with a read-through cache, collapses concurrent requests for
// the same text, and paces calls to the underlying provider.
type Cached struct {
	inner   Embedder
	cache   cache.Cache
	limiter *worker.Limiter
	ttl     time.Duration
	timeout time.Duration
	flight  singleflight.Group
	logger  *slog.Logger
}

// NewCached creates a caching wrapper. limiter may be nil. timeout bounds the shared
// provider call; zero means the caller deadlines alone apply.
func NewCached(inner Embedder, c cache.Cache, limiter *worker.Limiter, ttl, timeout time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{inner: inner, cache: c, limiter: limiter, ttl: ttl, timeout: timeout, logger: logger}
}

// Name returns the wrapped provider's name
func (c *Cached) Name() string {
	return c.inner.Name()
}

// Embed returns the cached vector or computes it once for all concurrent callers.
// Each caller still honours its own context deadline.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cache.EmbeddingKey(c.inner.Name(), text)
	if vec, ok := c.lookup(key); ok {
		return vec, nil
	}

	ch := c.flight.DoChan(key, func() (interface{}, error) {
		// Double-check cache (might have been populated while waiting)
		if vec, ok := c.lookup(key); ok {
			return vec, nil
		}

		// The call is shared, so it must outlive the caller that happened to start it
		shared := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			shared, cancel = context.WithTimeout(shared, c.timeout)
			defer cancel()
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(shared, c.inner.Name()); err != nil {
				return nil, err
			}
		}
		vec, err := c.inner.Embed(shared, text)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(vec); err == nil {
			if err := c.cache.Set(key, data, c.ttl); err != nil {
				c.logger.Warn("embedding cache write failed", "error", err)
			}
		}
		return vec, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		vec, ok := res.Val.([]float32)
		if !ok {
			return nil, fmt.Errorf("embed: unexpected result type %T", res.Val)
		}
		return vec, nil
	}
}

func (c *Cached) lookup(key string) ([]float32, bool) {
	data, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil || len(vec) == 0 {
		_ = c.cache.Delete(key)
		return nil, false
	}
	return vec, true
}
