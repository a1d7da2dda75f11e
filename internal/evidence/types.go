// Package evidence defines the retrieval output contract: scored evidence
// items, the per-clause evidence pack, and the diagnostics that explain how
// the pack was assembled.
package evidence

import (
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
)

// SourceStage records which retrieval stage put an item into the pack.
type SourceStage string

const (
	// StageDense marks items that entered through vector search.
	StageDense SourceStage = "dense"
	// StageLexical marks items that entered through BM25 only.
	StageLexical SourceStage = "lexical"
	// StageForcedAnchor marks items spliced in by anchor enforcement after
	// they missed the truncation cut.
	StageForcedAnchor SourceStage = "forced-anchor"
)

// Evidence is one retrieved document with its fused score and provenance.
type Evidence struct {
	Document *statute.Document `json:"document"`

	// Score is the final fused (and possibly reranked) relevance score.
	Score float64 `json:"score"`

	// MatchedAnchor is set when this item satisfies one of the request's
	// expected anchors.
	MatchedAnchor *statute.Anchor `json:"matched_anchor,omitempty"`

	SourceStage SourceStage `json:"source_stage"`

	// Per-pool diagnostics. A rank of 0 means the item did not appear in
	// that pool.
	DenseScore   float64 `json:"dense_score,omitempty"`
	LexicalScore float64 `json:"lexical_score,omitempty"`
	DenseRank    int     `json:"dense_rank,omitempty"`
	LexicalRank  int     `json:"lexical_rank,omitempty"`
}

// InBothPools reports whether the item was found by dense and lexical search.
func (e *Evidence) InBothPools() bool {
	return e.DenseRank > 0 && e.LexicalRank > 0
}

// Diagnostics explains how a pack was assembled. Every field is populated on
// every retrieval so degraded behavior is always visible to the caller.
type Diagnostics struct {
	DensePoolSize   int `json:"dense_pool_size"`
	LexicalPoolSize int `json:"lexical_pool_size"`
	MergedPoolSize  int `json:"merged_pool_size"`

	// RerankApplied is false when reranking was skipped or timed out.
	RerankApplied bool `json:"rerank_applied"`

	// Degraded is true when any stage fell back; DegradedReason names it.
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`

	// ForcedAnchors counts items spliced in by anchor enforcement.
	ForcedAnchors int `json:"forced_anchors"`

	// DuplicateAnchorWarning is set when an expected anchor matched more
	// than one indexed document; the first-inserted one was used.
	DuplicateAnchorWarning bool `json:"duplicate_anchor_warning,omitempty"`

	// NotIndexedAnchors lists expected anchors absent from the corpus, as
	// opposed to indexed but not retrieved (those appear in
	// UnmatchedAnchors on the pack with this list as the subset that was
	// never indexed at all).
	NotIndexedAnchors []string `json:"not_indexed_anchors,omitempty"`
}

// Pack is the evidence bundle returned for one clause. The order of Evidence
// is the ranking; callers truncate from the tail only.
type Pack struct {
	ClauseID     string `json:"clause_id"`
	Intent       string `json:"intent,omitempty"`
	Jurisdiction string `json:"jurisdiction"`

	Evidence []*Evidence `json:"evidence"`

	// SatisfiedAnchors and UnmatchedAnchors partition the request's
	// expected anchors.
	SatisfiedAnchors []statute.Anchor `json:"satisfied_anchors"`
	UnmatchedAnchors []statute.Anchor `json:"unmatched_anchors"`

	TopK int `json:"top_k"`

	Diagnostics Diagnostics `json:"diagnostics"`
}

// AnchorSatisfied reports whether the pack satisfied a specific anchor.
func (p *Pack) AnchorSatisfied(anchor statute.Anchor) bool {
	for _, a := range p.SatisfiedAnchors {
		if a.Equal(anchor) {
			return true
		}
	}
	return false
}

// AnchorMatchRatio is the fraction of expected anchors satisfied. A request
// with no expected anchors trivially scores 1.
func (p *Pack) AnchorMatchRatio() float64 {
	total := len(p.SatisfiedAnchors) + len(p.UnmatchedAnchors)
	if total == 0 {
		return 1.0
	}
	return float64(len(p.SatisfiedAnchors)) / float64(total)
}
