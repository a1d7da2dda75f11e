// Package store provides the persistence layer for statutory corpora: a
// dense vector store (HNSW), a BM25 lexical index (Bleve), and a SQLite
// metadata sidecar. One Index serves one (jurisdiction, document-type) pair;
// the vector store and the sidecar are the two durably separable artifacts
// that together form the unit of index versioning.
package store

import "fmt"

// VectorResult represents a single dense search result.
type VectorResult struct {
	ChunkID  string  // document chunk ID
	Score    float32 // normalized cosine similarity (0-1)
	Position int     // insertion position, used for stable tie-breaking
}

// LexicalResult represents a single BM25 search result.
type LexicalResult struct {
	ChunkID      string
	Score        float64
	MatchedTerms []string
}

// VectorStoreConfig configures the dense store.
type VectorStoreConfig struct {
	// Dimensions is the embedding dimension, fixed per deployment.
	Dimensions int

	// M is HNSW max connections per layer (default: 16).
	M int

	// EfSearch is HNSW query-time search width (default: 64).
	// Statutory corpora are small; a wide beam keeps recall effectively
	// exact so ranking stays reproducible.
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the dense store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   64,
	}
}

// Artifact file naming for one persisted index pair.
const (
	// VectorFileSuffix is the dense store artifact (HNSW graph export).
	VectorFileSuffix = ".hnsw"
	// VectorMetaSuffix is the dense store's position map sidecar.
	VectorMetaSuffix = ".hnsw.meta"
	// SidecarFileSuffix is the SQLite metadata sidecar.
	SidecarFileSuffix = ".db"
	// BuildLockFile guards an index directory against concurrent rebuilds.
	BuildLockFile = ".build.lock"
)

// Index state keys stored in the sidecar.
const (
	// StateKeyDimensions records the embedding dimension used at build time.
	StateKeyDimensions = "embedding_dimensions"
	// StateKeyModel records the embedding model name used at build time.
	StateKeyModel = "embedding_model"
	// StateKeyDocCount records the expected row count for load validation.
	StateKeyDocCount = "document_count"
)

// ErrDimensionMismatch indicates a vector dimension mismatch at the store
// boundary.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
