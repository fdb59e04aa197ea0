// Package embeddings provides embedding generation via TEI
// (text-embeddings-inference).
package embeddings

import (
	"context"
	"errors"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider generates embedding vectors for text.
//
// Implementations must be safe for concurrent use; the retrieval engine
// calls GenerateForText from multiple goroutines.
type Provider interface {
	// GenerateForText embeds a single text.
	GenerateForText(ctx context.Context, text string) ([]float32, error)

	// GenerateBatch embeds multiple texts in one call, preserving order.
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension this provider produces.
	Dimension() int

	// Close releases provider resources.
	Close() error
}
