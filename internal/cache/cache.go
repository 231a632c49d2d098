package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the interface for caching. Caches are never the source of truth:
// a miss must always be recoverable by recomputing from the store.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// ScoreKey is the key under which a claim's credibility result is cached
func ScoreKey(claimID string) string {
	return "veracity:v1:score:" + claimID
}

// EmbeddingKey generates a content-addressed key for an embedding of text under a model
func EmbeddingKey(model, text string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return "veracity:v1:embed:" + model + ":" + hex.EncodeToString(hash[:])
}
