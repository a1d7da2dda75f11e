// Package embed defines the embedding capability consumed by the retrieval
// engine. The engine treats embedders as black-box functions: deterministic
// given the same model and input, with a fixed dimension per deployment.
package embed

import (
	"context"
	"math"
	"time"
)

// Common embedding constants.
const (
	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// MaxBatchSize caps batch size to prevent memory exhaustion.
	MaxBatchSize = 256

	// DefaultTimeout is the per-call deadline for embedding backends.
	// Exceeding it surfaces a retrieval-timeout error instead of hanging
	// the clause pipeline.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for
	// retryable backend failures.
	DefaultMaxRetries = 3
)

// StaticDimensions is the embedding dimension for the built-in static
// embedder.
const StaticDimensions = 256

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	inv := float32(1.0 / magnitude)
	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = val * inv
	}
	return normalized
}
