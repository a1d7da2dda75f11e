package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
)

// StaticEmbedder generates embeddings using a hash-based approach.
// Works without external dependencies (no network, no model download) and is
// fully deterministic, which makes it suitable for index validation, tests,
// and offline CLI use. Production deployments inject a model-backed Embedder.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

// legalStopWords contains function words and boilerplate legal vocabulary
// that carry no discriminating signal between statute sections.
var legalStopWords = map[string]bool{
	"the": true, "of": true, "and": true, "or": true, "to": true,
	"in": true, "a": true, "an": true, "by": true, "for": true,
	"shall": true, "may": true, "be": true, "is": true, "are": true,
	"such": true, "any": true, "under": true, "as": true, "with": true,
	"hereby": true, "herein": true, "thereof": true, "thereto": true,
	"said": true, "provided": true, "pursuant": true,
}

// Weights for vector generation.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// wordRe matches alphanumeric sequences.
var wordRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed generates an embedding for a single text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}

	return normalizeVector(e.generateVector(trimmed)), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return "static-hash-256"
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// generateVector creates a hash-based vector from text. Tokens contribute
// most of the signal; character trigrams bridge spelling variation in
// citations ("sub-section", "subsection").
func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, StaticDimensions)

	for _, token := range tokenizeText(text) {
		if legalStopWords[token] {
			continue
		}
		vector[hashToIndex(token, StaticDimensions)] += tokenWeight
	}

	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	for _, ngram := range extractNgrams(normalized, ngramSize) {
		vector[hashToIndex(ngram, StaticDimensions)] += ngramWeight
	}

	return vector
}

// tokenizeText splits text into lowercase word tokens.
func tokenizeText(text string) []string {
	words := wordRe.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, strings.ToLower(w))
	}
	return tokens
}

// extractNgrams returns character n-grams of the given size.
func extractNgrams(text string, size int) []string {
	runes := []rune(text)
	if len(runes) < size {
		return nil
	}
	ngrams := make([]string, 0, len(runes)-size+1)
	for i := 0; i+size <= len(runes); i++ {
		ngrams = append(ngrams, string(runes[i:i+size]))
	}
	return ngrams
}

// hashToIndex maps a string to a vector index via FNV-1a.
func hashToIndex(s string, dimensions int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dimensions))
}

// Verify interface implementation.
var _ Embedder = (*StaticEmbedder)(nil)
