package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// DenseStore holds the embedding vectors for one corpus behind a coder/hnsw
// graph. Graph keys are insertion positions, which gives search results a
// stable tie-break order and lets load validation compare row counts against
// the metadata sidecar.
type DenseStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	positions map[uint64]string // insertion position -> chunk ID
	next      uint64

	closed bool
}

// denseMetadata stores the position map for persistence.
type denseMetadata struct {
	Positions map[uint64]string
	Next      uint64
	Config    VectorStoreConfig
}

// NewDenseStore creates a new HNSW-backed dense store.
func NewDenseStore(cfg VectorStoreConfig) (*DenseStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dense store requires positive dimensions, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &DenseStore{
		graph:     graph,
		config:    cfg,
		positions: make(map[uint64]string),
	}, nil
}

// Add appends vectors in insertion order. IDs must not repeat: documents
// are immutable once indexed, so an existing chunk ID is a build error.
func (s *DenseStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("dense store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		pos := s.next
		s.next++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		s.graph.Add(hnsw.MakeNode(pos, vec))
		s.positions[pos] = id
	}

	return nil
}

// Search finds the k nearest neighbors to the query vector, ordered by
// descending similarity with ties broken by insertion position.
func (s *DenseStore) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("dense store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 || k <= 0 {
		return []*VectorResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	nodes := s.graph.Search(normalized, k)

	results := make([]*VectorResult, 0, len(nodes))
	for _, node := range nodes {
		id, ok := s.positions[node.Key]
		if !ok {
			continue
		}
		distance := s.graph.Distance(normalized, node.Value)
		results = append(results, &VectorResult{
			ChunkID:  id,
			Score:    cosineDistanceToScore(distance),
			Position: int(node.Key),
		})
	}

	// Descending score; equal scores resolve by insertion order, never by
	// dropping one side of a tie.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Position < results[j].Position
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of vectors.
func (s *DenseStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.positions)
}

// Dimensions returns the configured embedding dimension.
func (s *DenseStore) Dimensions() int {
	return s.config.Dimensions
}

// Save persists the graph and its position map to disk.
// Uses atomic save (temp file + rename) for both artifacts.
func (s *DenseStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("dense store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create vector file: %w", err)
	}

	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close vector file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename vector file: %w", err)
	}

	return s.saveMetadata(path + ".meta")
}

// saveMetadata writes the position map to a gob file.
func (s *DenseStore) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create vector metadata file: %w", err)
	}

	meta := denseMetadata{
		Positions: s.positions,
		Next:      s.next,
		Config:    s.config,
	}

	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode vector metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close vector metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load reads the graph and position map from disk.
func (s *DenseStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("dense store is closed")
	}

	if err := s.loadMetadata(path + ".meta"); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open vector file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	return nil
}

// loadMetadata reads the position map from a gob file.
func (s *DenseStore) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open vector metadata: %w", err)
	}
	defer file.Close()

	var meta denseMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode vector metadata: %w", err)
	}

	s.positions = meta.Positions
	s.next = meta.Next
	s.config = meta.Config

	return nil
}

// Close releases resources.
func (s *DenseStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// cosineDistanceToScore converts cosine distance (0-2) to similarity (0-1).
func cosineDistanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}
