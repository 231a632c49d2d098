package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/worker"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req["model"])

		_ = json.NewEncoder(w).Encode(openai.EmbeddingResponse{
			Object: "list",
			Data:   []openai.Embedding{{Object: "embedding", Embedding: []float32{0.1, 0.2, 0.3}, Index: 0}},
			Model:  openai.SmallEmbedding3,
		})
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(model.EmbeddingConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "Is the bridge older than 1820?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "openai:text-embedding-3-small", e.Name())
}

func TestOpenAIEmbedder_Errors(t *testing.T) {
	_, err := NewOpenAIEmbedder(model.EmbeddingConfig{})
	assert.Error(t, err, "missing API key")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(model.EmbeddingConfig{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "text")
	assert.Error(t, err)

	_, err = e.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Model: req.Model, Embeddings: [][]float32{{1, 0}}})
	}))
	defer server.Close()

	e, err := NewOllamaEmbedder(model.EmbeddingConfig{Model: "nomic-embed-text", BaseURL: server.URL + "/"})
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
}

func TestOllamaEmbedder_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer server.Close()

	e, err := NewOllamaEmbedder(model.EmbeddingConfig{Model: "missing", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")

	_, err = NewOllamaEmbedder(model.EmbeddingConfig{})
	assert.Error(t, err, "model is required")
}

func TestHashingEmbedder_Deterministic(t *testing.T) {
	e := NewHashingEmbedder(128)
	ctx := context.Background()

	a, err := e.Embed(ctx, InquiryText("Bridge age", "Was the bridge built before 1820?"))
	require.NoError(t, err)
	b, err := e.Embed(ctx, InquiryText("Bridge age", "Was the bridge built before 1820?"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 128)

	_, err = e.Embed(ctx, " ... ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNew_Factory(t *testing.T) {
	e, err := New(model.EmbeddingConfig{Provider: "hashing", Dimensions: 32})
	require.NoError(t, err)
	assert.Equal(t, "hashing", e.Name())

	_, err = New(model.EmbeddingConfig{Provider: "word2vec"})
	assert.Error(t, err)
}

// countingEmbedder counts calls and blocks until released
type countingEmbedder struct {
	calls   int32
	release chan struct{}
}

func (c *countingEmbedder) Name() string { return "counting" }

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []float32{float32(len(text))}, nil
}

func TestCached_CollapsesConcurrentCalls(t *testing.T) {
	inner := &countingEmbedder{release: make(chan struct{})}
	c := NewCached(inner, cache.NewMemoryCache(time.Minute, time.Minute), nil, time.Minute, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vec, err := c.Embed(context.Background(), "same text")
			assert.NoError(t, err)
			assert.Equal(t, []float32{9}, vec)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))

	// Served from cache afterwards
	_, err := c.Embed(context.Background(), "same text")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}

func TestCached_CallerDeadline(t *testing.T) {
	inner := &countingEmbedder{release: make(chan struct{})}
	defer close(inner.release)
	c := NewCached(inner, cache.NewMemoryCache(time.Minute, time.Minute), worker.NewLimiter(100, 1), time.Minute, time.Minute, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Embed(ctx, "slow")
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestCached_CancelledCallerDoesNotFailOthers(t *testing.T) {
	inner := &countingEmbedder{release: make(chan struct{})}
	c := NewCached(inner, cache.NewMemoryCache(time.Minute, time.Minute), nil, time.Minute, time.Minute, nil)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Embed(first, "shared text")
		firstErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	type result struct {
		vec []float32
		err error
	}
	second := make(chan result, 1)
	go func() {
		vec, err := c.Embed(context.Background(), "shared text")
		second <- result{vec, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(inner.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, []float32{11}, got.vec)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}

func TestCached_SharedCallBoundedByTimeout(t *testing.T) {
	inner := &countingEmbedder{release: make(chan struct{})}
	defer close(inner.release)
	c := NewCached(inner, cache.NewMemoryCache(time.Minute, time.Minute), nil, time.Minute, 20*time.Millisecond, nil)

	_, err := c.Embed(context.Background(), "never answered")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
