package ground

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
	"github.com/shohbitgupta/contract-risk-agent/internal/evidence"
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
)

func evidenceItem(chunkID string, docType statute.DocumentType, content string) *evidence.Evidence {
	return &evidence.Evidence{
		Document: &statute.Document{
			Content:      content,
			Source:       "src",
			ChunkID:      chunkID,
			Type:         docType,
			Jurisdiction: "IN-MH",
		},
		Score:       0.8,
		SourceStage: evidence.StageDense,
	}
}

func basePack(items ...*evidence.Evidence) *evidence.Pack {
	return &evidence.Pack{
		ClauseID:     "c1",
		Jurisdiction: "IN-MH",
		Evidence:     items,
		TopK:         5,
		Diagnostics:  evidence.Diagnostics{RerankApplied: true},
	}
}

func TestWeights_Validate(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())

	bad := Weights{Coverage: 0.5, Anchors: 0.5, Jurisdiction: 0.5, Uncertainty: 0.5}
	err := bad.Validate()
	require.Error(t, err)
	assert.Equal(t, riskerr.ErrCodeConfigInvalid, riskerr.GetCode(err))

	negative := Weights{Coverage: -0.1, Anchors: 0.5, Jurisdiction: 0.3, Uncertainty: 0.3}
	require.Error(t, negative.Validate())
}

func TestEvaluate_SufficientEvidence(t *testing.T) {
	ev, err := New(DefaultConfig())
	require.NoError(t, err)

	clause := "the promoter shall refund the amount with interest"
	pack := basePack(
		evidenceItem("s18", statute.DocTypeActSection,
			"the promoter shall return the amount received with interest and compensation"),
		evidenceItem("s19", statute.DocTypeActSection,
			"the allottee may claim the refund of amount paid with interest"),
	)

	r, err := ev.Evaluate(clause, pack)
	require.NoError(t, err)

	assert.Equal(t, VerdictSufficient, r.Verdict)
	assert.InDelta(t, 2.0/5.0, r.Coverage, 1e-9) // 2 of 5 slots filled
	assert.Greater(t, r.VocabularyOverlap, 0.5)
	assert.Equal(t, 1.0, r.AnchorMatchRatio) // no expected anchors
	assert.Equal(t, 1.0, r.JurisdictionFit)
	assert.Greater(t, r.QualityScore, 0.5)
}

func TestEvaluate_CoverageIsSlotFillRatio(t *testing.T) {
	ev, err := New(DefaultConfig())
	require.NoError(t, err)

	partial := basePack(
		evidenceItem("s18", statute.DocTypeActSection, "refund of the amount"),
		evidenceItem("s19", statute.DocTypeActSection, "interest for delay"),
	)
	r, err := ev.Evaluate("refund with interest", partial)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/5.0, r.Coverage, 1e-9)

	// Forced anchors can push the pack past the requested size; coverage
	// clamps at 1.0.
	overfull := basePack(
		evidenceItem("s18", statute.DocTypeActSection, "a"),
		evidenceItem("s19", statute.DocTypeActSection, "b"),
		evidenceItem("s20", statute.DocTypeActSection, "c"),
		evidenceItem("s21", statute.DocTypeActSection, "d"),
		evidenceItem("s22", statute.DocTypeActSection, "e"),
		evidenceItem("s40", statute.DocTypeActSection, "f"),
	)
	r, err = ev.Evaluate("refund with interest", overfull)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.Coverage)
}

func TestEvaluate_DisjointVocabularyDoesNotFlipVerdict(t *testing.T) {
	ev, err := New(DefaultConfig())
	require.NoError(t, err)

	// Every requested slot filled, but no document shares a token with
	// the clause. That lowers the vocabulary-overlap diagnostic, not the
	// verdict: with all slots filled and no expected anchors the pack is
	// still sufficient.
	pack := basePack(
		evidenceItem("s3", statute.DocTypeActSection, "registration fees payable by agents"),
		evidenceItem("s4", statute.DocTypeActSection, "functions and duties of promoter"),
		evidenceItem("s5", statute.DocTypeActSection, "grant of registration"),
		evidenceItem("s6", statute.DocTypeActSection, "extension of registration"),
		evidenceItem("s7", statute.DocTypeActSection, "revocation of registration"),
	)

	r, err := ev.Evaluate("arbitration venue selection procedure", pack)
	require.NoError(t, err)

	assert.Equal(t, 1.0, r.Coverage)
	assert.Zero(t, r.VocabularyOverlap)
	assert.Equal(t, VerdictSufficient, r.Verdict)
	assert.Contains(t, r.Reasons, "evidence does not cover the clause vocabulary")
}

func TestEvaluate_AnchorRatioBelowThresholdIsInsufficient(t *testing.T) {
	ev, err := New(DefaultConfig())
	require.NoError(t, err)

	pack := basePack(
		evidenceItem("s18", statute.DocTypeActSection, "refund of the amount with interest"),
	)
	pack.UnmatchedAnchors = []statute.Anchor{
		statute.NewAnchor("RERA Act, 2016", "18"),
		statute.NewAnchor("RERA Act, 2016", "19"),
	}
	pack.SatisfiedAnchors = []statute.Anchor{
		statute.NewAnchor("RERA Act, 2016", "40"),
	}

	r, err := ev.Evaluate("refund of the amount with interest", pack)
	require.NoError(t, err)

	// 1 of 3 anchors satisfied, below the 0.5 threshold.
	assert.InDelta(t, 1.0/3.0, r.AnchorMatchRatio, 1e-9)
	assert.Equal(t, VerdictInsufficient, r.Verdict)
	assert.NotEmpty(t, r.Reasons)
}

func TestEvaluate_EmptyPack(t *testing.T) {
	ev, err := New(DefaultConfig())
	require.NoError(t, err)

	r, err := ev.Evaluate("any clause text", basePack())
	require.NoError(t, err)

	assert.Equal(t, VerdictInsufficient, r.Verdict)
	assert.Zero(t, r.Coverage)
	assert.Contains(t, r.Reasons, "no evidence retrieved")
}

func TestEvaluate_NoisePenaltyForOffPolicyDocTypes(t *testing.T) {
	ev, err := New(DefaultConfig())
	require.NoError(t, err)

	pack := basePack(
		evidenceItem("case1", statute.DocTypeCaseLaw, "refund of the amount with interest ordered"),
		evidenceItem("case2", statute.DocTypeCaseLaw, "refund of the amount with interest granted"),
	)
	pack.Intent = "refund" // prefers act-section, rule, model clause

	r, err := ev.Evaluate("refund of the amount with interest", pack)
	require.NoError(t, err)

	assert.Equal(t, 1.0, r.NoisePenalty)
	assert.Contains(t, r.Reasons, "most evidence falls outside the preferred document types for this intent")
}

func TestEvaluate_DegradedPipelineRaisesUncertainty(t *testing.T) {
	ev, err := New(DefaultConfig())
	require.NoError(t, err)

	clause := "refund of the amount with interest"
	clean := basePack(evidenceItem("s18", statute.DocTypeActSection, clause))

	degraded := basePack(evidenceItem("s18", statute.DocTypeActSection, clause))
	degraded.Diagnostics.Degraded = true
	degraded.Diagnostics.DegradedReason = "rerank: timeout"
	degraded.Diagnostics.RerankApplied = false

	cleanResult, err := ev.Evaluate(clause, clean)
	require.NoError(t, err)
	degradedResult, err := ev.Evaluate(clause, degraded)
	require.NoError(t, err)

	assert.Greater(t, degradedResult.Uncertainty, cleanResult.Uncertainty)
	assert.Less(t, degradedResult.QualityScore, cleanResult.QualityScore)
	assert.Contains(t, degradedResult.Reasons, "retrieval degraded: rerank: timeout")
}

func TestEvaluate_Idempotent(t *testing.T) {
	ev, err := New(DefaultConfig())
	require.NoError(t, err)

	clause := "possession handover timeline and interest for delay"
	pack := basePack(
		evidenceItem("s18", statute.DocTypeActSection, "interest for every month of delay till handing over of possession"),
	)

	first, err := ev.Evaluate(clause, pack)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := ev.Evaluate(clause, pack)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEvaluate_ConfigInjectedWeightsShiftScore(t *testing.T) {
	anchorHeavy, err := New(Config{
		Weights:         Weights{Coverage: 0.1, Anchors: 0.7, Jurisdiction: 0.1, Uncertainty: 0.1},
		AnchorThreshold: 0.5,
	})
	require.NoError(t, err)

	balanced, err := New(DefaultConfig())
	require.NoError(t, err)

	clause := "refund of the amount with interest"
	pack := basePack(evidenceItem("s18", statute.DocTypeActSection, clause))
	pack.UnmatchedAnchors = []statute.Anchor{statute.NewAnchor("RERA Act, 2016", "18")}

	heavy, err := anchorHeavy.Evaluate(clause, pack)
	require.NoError(t, err)
	base, err := balanced.Evaluate(clause, pack)
	require.NoError(t, err)

	// Zero anchors satisfied hurts more under anchor-heavy weights.
	assert.Less(t, heavy.QualityScore, base.QualityScore)
}
