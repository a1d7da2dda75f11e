// Package retrieval implements the hybrid retrieval pipeline: dense and
// lexical search over the jurisdiction's indexes, score fusion, bounded
// reranking, and anchor enforcement on the final pack.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shohbitgupta/contract-risk-agent/internal/anchor"
	"github.com/shohbitgupta/contract-risk-agent/internal/embed"
	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
	"github.com/shohbitgupta/contract-risk-agent/internal/evidence"
	"github.com/shohbitgupta/contract-risk-agent/internal/registry"
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
	"github.com/shohbitgupta/contract-risk-agent/internal/store"
)

// Defaults for the retrieval pipeline.
const (
	DefaultTopK          = 5
	DefaultOverFetch     = 4 // candidate pool multiplier before truncation
	MinOverFetch         = 3
	MaxOverFetch         = 5
	DefaultWorkers       = 4
	DefaultRerankTimeout = 2 * time.Second
	DefaultStageTimeout  = 10 * time.Second
)

// DefaultDocTypePriority orders document types by legal authority for
// retrieval. Earlier types break ranking ties and are searched first.
var DefaultDocTypePriority = []statute.DocumentType{
	statute.DocTypeModelClause,
	statute.DocTypeActSection,
	statute.DocTypeRule,
	statute.DocTypeCircular,
	statute.DocTypeCaseLaw,
}

// Policy tunes one retrieval request. Zero values fall back to the
// orchestrator's configured defaults.
type Policy struct {
	TopK      int
	OverFetch int
	Weights   *Weights
	DocTypes  []statute.DocumentType

	// SkipRerank keeps the fused order; used when the caller needs the raw
	// hybrid ranking.
	SkipRerank bool
}

// ClauseInput is one contract clause to retrieve evidence for.
type ClauseInput struct {
	ClauseID string `json:"clause_id"`
	Text     string `json:"text"`

	// Intent and ObligationType come from the upstream classification
	// step; the engine treats them as opaque labels except for doc-type
	// priority selection.
	Intent         string `json:"intent,omitempty"`
	ObligationType string `json:"obligation_type,omitempty"`

	// ExpectedAnchors are the statutory citations this clause is legally
	// expected to engage with.
	ExpectedAnchors []statute.Anchor `json:"expected_anchors,omitempty"`

	Policy *Policy `json:"-"`
}

// Options configures an Orchestrator.
type Options struct {
	TopK          int
	OverFetch     int
	Weights       Weights
	Workers       int
	RerankTimeout time.Duration
	StageTimeout  time.Duration
	DocTypes      []statute.DocumentType

	// Retry governs backoff on retryable embedding failures before the
	// pipeline degrades to lexical-only retrieval.
	Retry embed.RetryConfig
}

// Orchestrator runs the retrieval pipeline for one jurisdiction registry.
type Orchestrator struct {
	registry *registry.Registry
	embedder embed.Embedder
	reranker Reranker
	opts     Options
}

// New creates an Orchestrator. A nil reranker disables reranking.
func New(reg *registry.Registry, embedder embed.Embedder, reranker Reranker, opts Options) (*Orchestrator, error) {
	if reg == nil {
		return nil, riskerr.New(riskerr.ErrCodeConfigInvalid, "orchestrator requires a registry", nil)
	}
	if embedder == nil {
		return nil, riskerr.New(riskerr.ErrCodeConfigInvalid, "orchestrator requires an embedder", nil)
	}

	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.OverFetch <= 0 {
		opts.OverFetch = DefaultOverFetch
	}
	opts.OverFetch = clampOverFetch(opts.OverFetch)
	if !opts.Weights.Valid() {
		opts.Weights = DefaultWeights()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.RerankTimeout <= 0 {
		opts.RerankTimeout = DefaultRerankTimeout
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = DefaultStageTimeout
	}
	if len(opts.DocTypes) == 0 {
		opts.DocTypes = DefaultDocTypePriority
	}
	if opts.Retry == (embed.RetryConfig{}) {
		opts.Retry = embed.DefaultRetryConfig()
	}

	return &Orchestrator{
		registry: reg,
		embedder: embedder,
		reranker: reranker,
		opts:     opts,
	}, nil
}

func clampOverFetch(n int) int {
	if n < MinOverFetch {
		return MinOverFetch
	}
	if n > MaxOverFetch {
		return MaxOverFetch
	}
	return n
}

// Retrieve runs the full pipeline for one clause against one jurisdiction.
func (o *Orchestrator) Retrieve(ctx context.Context, jurisdiction string, clause ClauseInput) (*evidence.Pack, error) {
	if clause.ClauseID == "" {
		return nil, riskerr.New(riskerr.ErrCodeInvalidInput, "clause_id must not be empty", nil)
	}
	if clause.Text == "" {
		return nil, riskerr.New(riskerr.ErrCodeInvalidInput, "clause text must not be empty", nil).
			WithDetail("clause_id", clause.ClauseID)
	}

	topK := o.opts.TopK
	overFetch := o.opts.OverFetch
	weights := o.opts.Weights
	docTypes := o.opts.DocTypes
	skipRerank := false
	if p := clause.Policy; p != nil {
		if p.TopK > 0 {
			topK = p.TopK
		}
		if p.OverFetch > 0 {
			overFetch = clampOverFetch(p.OverFetch)
		}
		if p.Weights != nil && p.Weights.Valid() {
			weights = *p.Weights
		}
		if len(p.DocTypes) > 0 {
			docTypes = p.DocTypes
		}
		skipRerank = p.SkipRerank
	}

	indexes, err := o.registry.ResolveAvailable(ctx, jurisdiction, docTypes)
	if err != nil {
		return nil, err
	}
	if len(indexes) == 0 {
		return nil, riskerr.New(riskerr.ErrCodeIndexNotFound,
			fmt.Sprintf("no indexes available for jurisdiction %s", jurisdiction), nil)
	}

	pack := &evidence.Pack{
		ClauseID:     clause.ClauseID,
		Intent:       clause.Intent,
		Jurisdiction: jurisdiction,
		TopK:         topK,
	}

	var queryVec []float32
	err = embed.WithRetry(ctx, o.opts.Retry, func() error {
		var embedErr error
		queryVec, embedErr = o.embedder.Embed(ctx, clause.Text)
		return embedErr
	})
	if err != nil {
		// A slow or unavailable embedding backend degrades to the
		// lexical-only path; anything else is a hard failure.
		code := riskerr.GetCode(err)
		if code != riskerr.ErrCodeRetrievalTimeout && code != riskerr.ErrCodeBackendUnavailable {
			return nil, err
		}
		queryVec = nil
		pack.Diagnostics.Degraded = true
		pack.Diagnostics.DegradedReason = "embedding: " + err.Error()
		slog.Warn("embedding degraded to lexical-only retrieval",
			slog.String("clause_id", clause.ClauseID),
			slog.String("error", err.Error()))
	}

	poolSize := topK * overFetch

	// Search every available index in priority order; the per-index pools
	// are concatenated before fusion so normalization sees the whole pool.
	var denseAll []*store.VectorResult
	var lexicalAll []*store.LexicalResult
	lookup := multiIndexLookup{}
	var probes []anchor.Lookup

	sctx, cancel := context.WithTimeout(ctx, o.opts.StageTimeout)
	defer cancel()

	for _, dt := range docTypes {
		idx, ok := indexes[dt]
		if !ok {
			continue
		}
		lookup = append(lookup, idx)
		probes = append(probes, idx)

		if queryVec != nil {
			dense, err := idx.SearchDense(sctx, queryVec, poolSize)
			if err != nil {
				return nil, classifyStageErr("dense", err)
			}
			denseAll = append(denseAll, dense...)
		}

		lexical, err := idx.SearchLexical(sctx, clause.Text, poolSize)
		if err != nil {
			return nil, classifyStageErr("lexical", err)
		}
		lexicalAll = append(lexicalAll, lexical...)
	}

	// Re-rank the concatenated pools by raw score so cross-index fusion
	// stays deterministic.
	sort.SliceStable(denseAll, func(i, j int) bool {
		if denseAll[i].Score != denseAll[j].Score {
			return denseAll[i].Score > denseAll[j].Score
		}
		return denseAll[i].ChunkID < denseAll[j].ChunkID
	})
	sort.SliceStable(lexicalAll, func(i, j int) bool {
		if lexicalAll[i].Score != lexicalAll[j].Score {
			return lexicalAll[i].Score > lexicalAll[j].Score
		}
		return lexicalAll[i].ChunkID < lexicalAll[j].ChunkID
	})
	if len(denseAll) > poolSize {
		denseAll = denseAll[:poolSize]
	}
	if len(lexicalAll) > poolSize {
		lexicalAll = lexicalAll[:poolSize]
	}

	pack.Diagnostics.DensePoolSize = len(denseAll)
	pack.Diagnostics.LexicalPoolSize = len(lexicalAll)

	pool := fuse(denseAll, lexicalAll, weights, lookup)
	// Indexes are jurisdiction-checked at load; this keeps a miswired
	// registry from leaking another state's law into the pack.
	pool = filterJurisdiction(pool, jurisdiction)
	pack.Diagnostics.MergedPoolSize = len(pool)

	if !skipRerank && o.reranker != nil {
		applied, reason := rerankWithTimeout(ctx, o.reranker, clause.Text, pool, o.opts.RerankTimeout)
		pack.Diagnostics.RerankApplied = applied
		if !applied && reason != "" {
			pack.Diagnostics.Degraded = true
			pack.Diagnostics.DegradedReason = reason
			slog.Warn("rerank degraded to fused order",
				slog.String("clause_id", clause.ClauseID),
				slog.String("reason", reason))
		}
	}

	result, satisfied, unmatched := anchor.Enforce(pool, clause.ExpectedAnchors, topK, probes, &pack.Diagnostics)
	pack.Evidence = result
	pack.SatisfiedAnchors = satisfied
	pack.UnmatchedAnchors = unmatched

	slog.Debug("clause retrieved",
		slog.String("clause_id", clause.ClauseID),
		slog.String("jurisdiction", jurisdiction),
		slog.Int("evidence", len(result)),
		slog.Int("satisfied_anchors", len(satisfied)),
		slog.Int("unmatched_anchors", len(unmatched)))
	return pack, nil
}

// RetrieveAll processes clauses concurrently with a bounded worker pool.
// Each clause fails in isolation: the returned slice holds one outcome per
// input, in input order, and a failed clause never blocks its siblings.
func (o *Orchestrator) RetrieveAll(ctx context.Context, jurisdiction string, clauses []ClauseInput) []ClauseResult {
	results := make([]ClauseResult, len(clauses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)

	for i, clause := range clauses {
		i, clause := i, clause
		g.Go(func() error {
			pack, err := o.Retrieve(gctx, jurisdiction, clause)
			results[i] = ClauseResult{ClauseID: clause.ClauseID, Pack: pack, Err: err}
			// Errors stay in the result slot; returning them would cancel
			// the sibling clauses.
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// ClauseResult pairs one clause with its retrieval outcome.
type ClauseResult struct {
	ClauseID string
	Pack     *evidence.Pack
	Err      error
}

// filterJurisdiction drops evidence whose document belongs to a different
// jurisdiction than the one requested.
func filterJurisdiction(pool []*evidence.Evidence, jurisdiction string) []*evidence.Evidence {
	out := pool[:0]
	for _, ev := range pool {
		if ev.Document.Jurisdiction == jurisdiction {
			out = append(out, ev)
		}
	}
	return out
}

// classifyStageErr wraps stage failures that are not already engine errors.
func classifyStageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	if riskerr.GetCode(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return riskerr.RetrievalTimeout(stage, err)
	}
	return riskerr.New(riskerr.ErrCodeBackendUnavailable, stage+" search failed", err)
}

// multiIndexLookup resolves chunk IDs across several indexes in priority
// order.
type multiIndexLookup []*store.Index

func (m multiIndexLookup) Get(chunkID string) (*statute.Document, bool) {
	for _, idx := range m {
		if doc, ok := idx.Get(chunkID); ok {
			return doc, true
		}
	}
	return nil, false
}
