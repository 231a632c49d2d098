package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBadger(t *testing.T) *BadgerCache {
	t.Helper()
	c, err := OpenBadgerCache("", time.Hour, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	value := []byte(`{"score":0.8}`)
	require.NoError(t, c.Set(ScoreKey("c1"), value, 0))
	value[0] = 'X'

	got, ok := c.Get(ScoreKey("c1"))
	require.True(t, ok)
	assert.Equal(t, `{"score":0.8}`, string(got), "stored value must be a copy")
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete(ScoreKey("c1")))
	_, ok = c.Get(ScoreKey("c1"))
	assert.False(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	require.NoError(t, c.Set("k", []byte("v"), 10*time.Millisecond))

	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestBadgerCache_RoundTrip(t *testing.T) {
	c := newBadger(t)

	require.NoError(t, c.Set("a", []byte("1"), 0))
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", string(got))

	require.NoError(t, c.Delete("a"))
	require.NoError(t, c.Delete("never-set"))
	_, ok = c.Get("a")
	assert.False(t, ok)

	require.NoError(t, c.Set("b", []byte("2"), 0))
	require.NoError(t, c.Clear())
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestLayeredCache_PromotesFromBack(t *testing.T) {
	front := NewMemoryCache(time.Minute, time.Minute)
	back := newBadger(t)
	layered := NewLayeredCache(front, back, time.Minute)

	require.NoError(t, back.Set("k", []byte("persisted"), 0))
	_, ok := front.Get("k")
	require.False(t, ok)

	got, ok := layered.Get("k")
	require.True(t, ok)
	assert.Equal(t, "persisted", string(got))

	promoted, ok := front.Get("k")
	require.True(t, ok, "value should be promoted to the front layer")
	assert.Equal(t, "persisted", string(promoted))
}

func TestLayeredCache_SetAndDeleteBothLayers(t *testing.T) {
	front := NewMemoryCache(time.Minute, time.Minute)
	back := newBadger(t)
	layered := NewLayeredCache(front, back, time.Minute)

	require.NoError(t, layered.Set("k", []byte("v"), 0))
	_, inFront := front.Get("k")
	_, inBack := back.Get("k")
	assert.True(t, inFront)
	assert.True(t, inBack)

	require.NoError(t, layered.Delete("k"))
	_, ok := layered.Get("k")
	assert.False(t, ok)
}

func TestEmbeddingKey_ModelScoped(t *testing.T) {
	assert.Equal(t, EmbeddingKey("m", "text"), EmbeddingKey("m", "  text \n"))
	assert.NotEqual(t, EmbeddingKey("m1", "text"), EmbeddingKey("m2", "text"))
}
