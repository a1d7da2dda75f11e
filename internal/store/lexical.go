package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
)

const (
	// LegalTokenizerName is the name of the statute-aware tokenizer.
	LegalTokenizerName = "legal_tokenizer"

	// LegalStopFilterName is the name of the legal stop word filter.
	LegalStopFilterName = "legal_stop"

	// LegalAnalyzerName is the name of the legal text analyzer.
	LegalAnalyzerName = "legal_analyzer"
)

func init() {
	// Register custom tokenizer
	registry.RegisterTokenizer(LegalTokenizerName, legalTokenizerConstructor)

	// Register custom stop word filter
	registry.RegisterTokenFilter(LegalStopFilterName, legalStopFilterConstructor)
}

// LexicalIndex wraps Bleve v2 for BM25 keyword search over statutory text.
// The lexical index is derived state: it is rebuilt in memory from the
// metadata sidecar at load time, so it never needs its own on-disk artifact
// or its own corruption handling.
type LexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// bleveDocument is the document structure for Bleve indexing.
type bleveDocument struct {
	Content string `json:"content"`
}

// NewLexicalIndex creates a new in-memory BM25 index.
func NewLexicalIndex() (*LexicalIndex, error) {
	indexMapping, err := createLegalIndexMapping()
	if err != nil {
		return nil, err
	}

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}

	return &LexicalIndex{index: idx}, nil
}

// createLegalIndexMapping creates the Bleve index mapping with the legal
// analyzer as default.
func createLegalIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(LegalAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": LegalTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			LegalStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = LegalAnalyzerName

	return indexMapping, nil
}

// Index adds document contents keyed by chunk ID.
func (l *LexicalIndex) Index(ctx context.Context, ids []string, contents []string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(contents) {
		return fmt.Errorf("ids and contents length mismatch: %d vs %d", len(ids), len(contents))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("lexical index is closed")
	}

	batch := l.index.NewBatch()
	for i, id := range ids {
		if err := batch.Index(id, bleveDocument{Content: contents[i]}); err != nil {
			return fmt.Errorf("index document %s: %w", id, err)
		}
	}

	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("execute index batch: %w", err)
	}
	return nil
}

// Search returns chunk IDs matching the query, scored by BM25.
// Ties are broken by chunk ID so repeated searches return identical slices.
func (l *LexicalIndex) Search(ctx context.Context, queryStr string, limit int) ([]*LexicalResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}

	if strings.TrimSpace(queryStr) == "" || limit <= 0 {
		return []*LexicalResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")

	searchRequest := bleve.NewSearchRequest(matchQuery)
	searchRequest.Size = limit
	searchRequest.IncludeLocations = true // for matched terms

	result, err := l.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	results := make([]*LexicalResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &LexicalResult{
			ChunkID:      hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	return results, nil
}

// Count returns the number of indexed documents.
func (l *LexicalIndex) Count() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return 0, fmt.Errorf("lexical index is closed")
	}
	return l.index.DocCount()
}

// Close closes the index.
func (l *LexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.index != nil {
		return l.index.Close()
	}
	return nil
}

// extractMatchedTerms extracts matched terms from a search hit.
func extractMatchedTerms(hit *search.DocumentMatch) []string {
	terms := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field == "content" {
			for term := range locations {
				terms[term] = struct{}{}
			}
		}
	}

	result := make([]string, 0, len(terms))
	for term := range terms {
		result = append(result, term)
	}
	sort.Strings(result)
	return result
}

// legalTokenizerConstructor creates the statute-aware tokenizer for Bleve.
func legalTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveLegalTokenizer{}, nil
}

// bleveLegalTokenizer implements analysis.Tokenizer for legal text.
type bleveLegalTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *bleveLegalTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeLegal(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), token)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

// legalStopFilterConstructor creates the legal stop word filter for Bleve.
func legalStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveLegalStopFilter{
		stopWords: BuildStopWordMap(DefaultLegalStopWords),
	}, nil
}

// bleveLegalStopFilter implements analysis.TokenFilter for legal stop words.
type bleveLegalStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *bleveLegalStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
