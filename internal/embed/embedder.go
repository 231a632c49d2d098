// Package embed turns inquiry text into vectors for duplicate detection.
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// ErrInvalidInput is returned for empty text
var ErrInvalidInput = errors.New("embed: empty input text")

// Embedder defines the interface for embedding providers.
// Implementations must return vectors of a stable dimensionality.
type Embedder interface {
	// Name returns the provider name
	Name() string

	// Embed returns the embedding vector for text
	Embed(ctx context.Context, text string) ([]float32, error)
}

// InquiryText is the text embedded for an inquiry
func InquiryText(title, description string) string {
	return strings.TrimSpace(title) + "\n\n" + strings.TrimSpace(description)
}

// New creates an embedding provider from configuration
func New(cfg model.EmbeddingConfig) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIEmbedder(cfg)
	case "ollama":
		return NewOllamaEmbedder(cfg)
	case "hashing", "":
		return NewHashingEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, ollama, hashing)", cfg.Provider)
	}
}
