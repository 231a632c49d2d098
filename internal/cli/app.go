package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/embed"
	"github.com/ppiankov/veracity/internal/engine"
	"github.com/ppiankov/veracity/internal/events"
	"github.com/ppiankov/veracity/internal/logging"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/source"
	"github.com/ppiankov/veracity/internal/store"
	"github.com/ppiankov/veracity/internal/worker"
)

// app is the wired engine with everything that must be closed on exit
type app struct {
	cfg     model.Config
	store   *store.SqlStore
	engine  *engine.Engine
	closers []func() error
	logger  *slog.Logger
}

// openApp opens the store, the embedding provider and the event bus and builds the engine
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logging.New("cli")}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	embedder, err := a.embedder()
	if err != nil {
		a.close()
		return nil, err
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.RedisURL != "" {
		bus, err := events.NewRedisBus(cfg.Events.RedisURL, cfg.Events.Channel)
		if err != nil {
			a.close()
			return nil, err
		}
		async := events.NewAsync(bus, cfg.Events.Buffer, engine.EventsDropped.Inc, logging.New("events"))
		// Drain queued events before the connection goes away
		a.closers = append(a.closers, bus.Close, func() error { async.Close(); return nil })
		publisher = async
	}

	opts := engine.Options{
		Store:     st,
		Embedder:  embedder,
		Publisher: publisher,
		Logger:    logging.New("engine"),
	}
	if cfg.Sources.CheckOnSubmit {
		opts.Sources = source.NewChecker(cfg.Sources, logging.New("source"))
	}
	eng, err := engine.New(cfg, opts)
	if err != nil {
		a.close()
		return nil, err
	}
	a.engine = eng
	return a, nil
}

// embedder builds the configured provider behind a memory cache, optionally backed by badger
func (a *app) embedder() (embed.Embedder, error) {
	cfg := a.cfg
	inner, err := embed.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	if inner.Name() == "hashing" {
		return inner, nil
	}

	var c cache.Cache = cache.NewMemoryCache(cfg.Cache.EmbeddingTTL, cfg.Cache.CleanupInterval)
	if cfg.Cache.EmbeddingDir != "" {
		back, err := cache.OpenBadgerCache(cfg.Cache.EmbeddingDir, cfg.Cache.EmbeddingTTL, logging.New("badger"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, back.Close)
		c = cache.NewLayeredCache(c, back, cfg.Cache.EmbeddingTTL)
	}

	limiter := worker.NewLimiter(cfg.Embedding.RequestsPerSecond, cfg.Embedding.Burst)
	return embed.NewCached(inner, c, limiter, cfg.Cache.EmbeddingTTL, cfg.Embedding.Timeout, logging.New("embed")), nil
}

// close releases resources in reverse order of acquisition
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close", "error", err)
		}
	}
	a.closers = nil
}

// serveMetrics exposes /metrics until the returned stop function is called.
// An empty address disables it.
func serveMetrics(addr string) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
