package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
	"github.com/shohbitgupta/contract-risk-agent/internal/evidence"
	"github.com/shohbitgupta/contract-risk-agent/internal/store"
)

// MaxRerankWindow caps how many fused candidates a reranker may reorder.
// Anything below the window keeps its fused rank.
const MaxRerankWindow = 20

// Reranker reorders the head of a fused candidate list against the clause
// text. Implementations must be deterministic for identical inputs and must
// only reorder within the window they were given, never drop items.
type Reranker interface {
	Rerank(ctx context.Context, clauseText string, items []*evidence.Evidence) error
	Name() string
}

// NoOpReranker leaves the fused order untouched.
type NoOpReranker struct{}

func (NoOpReranker) Rerank(ctx context.Context, clauseText string, items []*evidence.Evidence) error {
	return nil
}

func (NoOpReranker) Name() string { return "noop" }

// TermOverlapReranker scores each candidate by weighted term overlap with
// the clause text. It is the deterministic local stand-in for a hosted
// cross-encoder: same interface, same windowing, no network.
type TermOverlapReranker struct{}

func NewTermOverlapReranker() *TermOverlapReranker {
	return &TermOverlapReranker{}
}

func (r *TermOverlapReranker) Name() string { return "term-overlap" }

func (r *TermOverlapReranker) Rerank(ctx context.Context, clauseText string, items []*evidence.Evidence) error {
	if len(items) < 2 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return riskerr.RetrievalTimeout("rerank", err)
	}

	clauseTerms := termFrequencies(clauseText)
	if len(clauseTerms) == 0 {
		return nil
	}

	type scored struct {
		item    *evidence.Evidence
		overlap float64
	}
	scoredItems := make([]scored, len(items))
	for i, item := range items {
		scoredItems[i] = scored{item: item, overlap: overlapScore(clauseTerms, item.Document.Content)}
	}

	sort.SliceStable(scoredItems, func(i, j int) bool {
		a, b := scoredItems[i], scoredItems[j]
		if a.overlap != b.overlap {
			return a.overlap > b.overlap
		}
		if a.item.Score != b.item.Score {
			return a.item.Score > b.item.Score
		}
		return a.item.Document.ChunkID < b.item.Document.ChunkID
	})

	// Blend: the reranker decides order, the fused score is folded in so
	// downstream consumers still see a meaningful relevance value.
	for i, s := range scoredItems {
		items[i] = s.item
		items[i].Score = 0.5*s.overlap + 0.5*s.item.Score
	}
	return nil
}

// termFrequencies tokenizes text into a term frequency map using the same
// tokenizer the lexical index uses.
func termFrequencies(text string) map[string]float64 {
	stop := store.BuildStopWordMap(store.DefaultLegalStopWords)
	freqs := make(map[string]float64)
	for _, tok := range store.TokenizeLegal(text) {
		if _, isStop := stop[tok]; isStop {
			continue
		}
		freqs[tok]++
	}
	return freqs
}

// overlapScore computes a dampened overlap between clause terms and
// document content, normalized by clause term mass.
func overlapScore(clauseTerms map[string]float64, content string) float64 {
	docTerms := termFrequencies(strings.ToLower(content))

	var hit, total float64
	for term, weight := range clauseTerms {
		total += weight
		if df, ok := docTerms[term]; ok {
			hit += weight * math.Min(1.0, math.Log1p(df))
		}
	}
	if total == 0 {
		return 0
	}
	return hit / total
}

// rerankWithTimeout runs the reranker under a deadline. On timeout or error
// the fused order is restored and the caller is told the rerank did not
// apply; a slow reranker degrades ranking quality, never availability.
func rerankWithTimeout(ctx context.Context, r Reranker, clauseText string, items []*evidence.Evidence, timeout time.Duration) (applied bool, reason string) {
	if r == nil || len(items) < 2 {
		return false, ""
	}

	window := items
	if len(window) > MaxRerankWindow {
		window = items[:MaxRerankWindow]
	}

	// The reranker works on copies so a timed-out call left running in the
	// background can never mutate the pack we return.
	work := make([]*evidence.Evidence, len(window))
	for i, item := range window {
		cp := *item
		work[i] = &cp
	}

	rctx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		rctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- r.Rerank(rctx, clauseText, work)
	}()

	var err error
	select {
	case err = <-done:
	case <-rctx.Done():
		err = riskerr.RetrievalTimeout("rerank", rctx.Err())
	}

	if err != nil {
		return false, "rerank: " + err.Error()
	}

	copy(window, work)
	return true, ""
}

var (
	_ Reranker = (*NoOpReranker)(nil)
	_ Reranker = (*TermOverlapReranker)(nil)
)
