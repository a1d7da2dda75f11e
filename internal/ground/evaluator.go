// Package ground scores how well an evidence pack supports judging a
// contract clause. The evaluator is a pure function over the pack and the
// clause: same inputs, same result, no hidden state.
package ground

import (
	"fmt"
	"math"
	"sort"
	"strings"

	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
	"github.com/shohbitgupta/contract-risk-agent/internal/evidence"
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
	"github.com/shohbitgupta/contract-risk-agent/internal/store"
)

// Verdicts.
const (
	VerdictSufficient   = "sufficient"
	VerdictInsufficient = "insufficient_evidence"
)

const weightSumTolerance = 1e-6

// Weights balances the four groundedness components. They must sum to 1.
type Weights struct {
	Coverage     float64 `yaml:"coverage" json:"coverage"`
	Anchors      float64 `yaml:"anchors" json:"anchors"`
	Jurisdiction float64 `yaml:"jurisdiction" json:"jurisdiction"`
	Uncertainty  float64 `yaml:"uncertainty" json:"uncertainty"`
}

// DefaultWeights returns the standard component balance.
func DefaultWeights() Weights {
	return Weights{Coverage: 0.30, Anchors: 0.30, Jurisdiction: 0.20, Uncertainty: 0.20}
}

// Validate checks that the weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	if w.Coverage < 0 || w.Anchors < 0 || w.Jurisdiction < 0 || w.Uncertainty < 0 {
		return riskerr.New(riskerr.ErrCodeConfigInvalid, "groundedness weights must be non-negative", nil)
	}
	sum := w.Coverage + w.Anchors + w.Jurisdiction + w.Uncertainty
	if math.Abs(sum-1.0) > weightSumTolerance {
		return riskerr.New(riskerr.ErrCodeConfigInvalid,
			fmt.Sprintf("groundedness weights must sum to 1.0, got %.4f", sum), nil)
	}
	return nil
}

// Config tunes the evaluator.
type Config struct {
	Weights Weights `yaml:"weights" json:"weights"`

	// AnchorThreshold is the minimum anchor match ratio below which the
	// verdict is insufficient_evidence regardless of the quality score.
	AnchorThreshold float64 `yaml:"anchor_threshold" json:"anchor_threshold"`

	// PreferredDocTypes maps an intent label to the document types its
	// evidence should come from; items outside the set count toward the
	// noise penalty. An intent with no entry uses every known type.
	PreferredDocTypes map[string][]statute.DocumentType `yaml:"preferred_doc_types" json:"preferred_doc_types"`
}

// DefaultConfig returns a config with standard weights and thresholds.
func DefaultConfig() Config {
	return Config{
		Weights:         DefaultWeights(),
		AnchorThreshold: 0.5,
		PreferredDocTypes: map[string][]statute.DocumentType{
			"refund":       {statute.DocTypeActSection, statute.DocTypeRule, statute.DocTypeModelClause},
			"possession":   {statute.DocTypeActSection, statute.DocTypeModelClause},
			"registration": {statute.DocTypeActSection, statute.DocTypeRule, statute.DocTypeCircular},
		},
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.AnchorThreshold < 0 || c.AnchorThreshold > 1 {
		return riskerr.New(riskerr.ErrCodeConfigInvalid,
			fmt.Sprintf("anchor threshold must be in [0,1], got %.2f", c.AnchorThreshold), nil)
	}
	return nil
}

// Result is the groundedness assessment for one clause.
type Result struct {
	ClauseID string `json:"clause_id"`

	Coverage          float64 `json:"coverage"`
	VocabularyOverlap float64 `json:"vocabulary_overlap"`
	AnchorMatchRatio  float64 `json:"anchor_match_ratio"`
	JurisdictionFit   float64 `json:"jurisdiction_fit"`
	NoisePenalty      float64 `json:"noise_penalty"`
	Uncertainty       float64 `json:"uncertainty"`

	QualityScore float64 `json:"quality_score"`
	Verdict      string  `json:"verdict"`

	// Reasons are human-readable diagnostics for the explanation stage.
	Reasons []string `json:"reasons,omitempty"`
}

// Evaluator scores evidence packs.
type Evaluator struct {
	cfg Config
}

// New creates an Evaluator, validating the config.
func New(cfg Config) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{cfg: cfg}, nil
}

// Evaluate scores one pack against the clause text it was retrieved for.
func (e *Evaluator) Evaluate(clauseText string, pack *evidence.Pack) (*Result, error) {
	if pack == nil {
		return nil, riskerr.New(riskerr.ErrCodeInvalidInput, "evidence pack must not be nil", nil)
	}

	r := &Result{
		ClauseID:          pack.ClauseID,
		Coverage:          coverage(pack),
		VocabularyOverlap: vocabularyOverlap(clauseText, pack.Evidence),
		AnchorMatchRatio:  pack.AnchorMatchRatio(),
		JurisdictionFit:   jurisdictionFit(pack),
		NoisePenalty:      e.noisePenalty(pack),
	}
	r.Uncertainty = uncertainty(pack, r.NoisePenalty)

	r.QualityScore = e.cfg.Weights.Coverage*r.Coverage +
		e.cfg.Weights.Anchors*r.AnchorMatchRatio +
		e.cfg.Weights.Jurisdiction*r.JurisdictionFit +
		e.cfg.Weights.Uncertainty*(1.0-r.Uncertainty)

	r.Verdict = VerdictSufficient
	if r.AnchorMatchRatio < e.cfg.AnchorThreshold || r.Coverage == 0 {
		r.Verdict = VerdictInsufficient
	}

	r.Reasons = e.reasons(r, pack)
	return r, nil
}

// coverage is the fraction of requested evidence slots actually filled,
// clamped to [0,1]. An over-full pack (forced anchors appended beyond the
// requested size) still counts as fully covered.
func coverage(pack *evidence.Pack) float64 {
	if pack.TopK <= 0 || len(pack.Evidence) == 0 {
		return 0
	}
	return math.Min(float64(len(pack.Evidence))/float64(pack.TopK), 1.0)
}

// vocabularyOverlap measures how much of the clause's vocabulary the
// evidence engages with: the fraction of distinct clause terms that appear
// in at least one evidence document. Diagnostic only; it never gates the
// verdict.
func vocabularyOverlap(clauseText string, items []*evidence.Evidence) float64 {
	if len(items) == 0 {
		return 0
	}

	stop := store.BuildStopWordMap(store.DefaultLegalStopWords)
	clauseTerms := make(map[string]bool)
	for _, tok := range store.TokenizeLegal(clauseText) {
		if _, isStop := stop[tok]; !isStop {
			clauseTerms[tok] = true
		}
	}
	if len(clauseTerms) == 0 {
		return 0
	}

	evidenceTerms := make(map[string]bool)
	for _, item := range items {
		for _, tok := range store.TokenizeLegal(item.Document.Content) {
			evidenceTerms[tok] = true
		}
	}

	covered := 0
	for term := range clauseTerms {
		if evidenceTerms[term] {
			covered++
		}
	}
	return float64(covered) / float64(len(clauseTerms))
}

// jurisdictionFit is the fraction of evidence from the pack's jurisdiction.
// Registry scoping makes cross-jurisdiction evidence structurally impossible
// in normal operation; a fit below 1.0 indicates a contaminated index.
func jurisdictionFit(pack *evidence.Pack) float64 {
	if len(pack.Evidence) == 0 {
		return 0
	}
	matching := 0
	for _, item := range pack.Evidence {
		if item.Document.Jurisdiction == pack.Jurisdiction {
			matching++
		}
	}
	return float64(matching) / float64(len(pack.Evidence))
}

// noisePenalty is the fraction of evidence outside the policy-preferred
// document types for the pack's intent.
func (e *Evaluator) noisePenalty(pack *evidence.Pack) float64 {
	if len(pack.Evidence) == 0 {
		return 0
	}

	preferred, ok := e.cfg.PreferredDocTypes[strings.ToLower(pack.Intent)]
	if !ok || len(preferred) == 0 {
		return 0
	}
	allowed := make(map[statute.DocumentType]bool, len(preferred))
	for _, dt := range preferred {
		allowed[dt] = true
	}

	noisy := 0
	for _, item := range pack.Evidence {
		if !allowed[item.Document.Type] {
			noisy++
		}
	}
	return float64(noisy) / float64(len(pack.Evidence))
}

// uncertainty combines degraded-pipeline signals and evidence noise into a
// [0,1] penalty.
func uncertainty(pack *evidence.Pack, noisePenalty float64) float64 {
	u := noisePenalty * 0.5
	if pack.Diagnostics.Degraded {
		u += 0.3
	}
	if !pack.Diagnostics.RerankApplied {
		u += 0.1
	}
	if pack.Diagnostics.DuplicateAnchorWarning {
		u += 0.1
	}
	return math.Min(u, 1.0)
}

// reasons renders the diagnostics the external explanation stage consumes.
func (e *Evaluator) reasons(r *Result, pack *evidence.Pack) []string {
	var out []string

	if len(pack.Evidence) == 0 {
		out = append(out, "no evidence retrieved")
	}
	if r.VocabularyOverlap == 0 && len(pack.Evidence) > 0 {
		out = append(out, "evidence does not cover the clause vocabulary")
	}
	if len(pack.UnmatchedAnchors) > 0 {
		cites := make([]string, len(pack.UnmatchedAnchors))
		for i, a := range pack.UnmatchedAnchors {
			cites[i] = a.String()
		}
		sort.Strings(cites)
		out = append(out, "expected citations not satisfied: "+strings.Join(cites, "; "))
	}
	if len(pack.Diagnostics.NotIndexedAnchors) > 0 {
		out = append(out, "citations absent from the corpus: "+
			strings.Join(pack.Diagnostics.NotIndexedAnchors, "; "))
	}
	if pack.Diagnostics.Degraded {
		out = append(out, "retrieval degraded: "+pack.Diagnostics.DegradedReason)
	}
	if pack.Diagnostics.DuplicateAnchorWarning {
		out = append(out, "a cited section matched more than one indexed document")
	}
	if r.NoisePenalty > 0.5 {
		out = append(out, "most evidence falls outside the preferred document types for this intent")
	}
	return out
}
