package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shohbitgupta/contract-risk-agent/internal/evidence"
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
)

func rerankItem(chunkID, content string, score float64) *evidence.Evidence {
	return &evidence.Evidence{
		Document: &statute.Document{
			Content:      content,
			Source:       "src",
			ChunkID:      chunkID,
			Type:         statute.DocTypeModelClause,
			Jurisdiction: "IN-MH",
		},
		Score:       score,
		SourceStage: evidence.StageDense,
	}
}

func TestTermOverlapReranker_PromotesOverlappingDocument(t *testing.T) {
	clause := "the promoter shall refund the amount paid with interest on withdrawal"

	items := []*evidence.Evidence{
		rerankItem("off-topic", "registration of real estate agents with the authority", 0.9),
		rerankItem("on-topic", "the allottee is entitled to a refund of the amount paid with interest", 0.8),
	}

	r := NewTermOverlapReranker()
	require.NoError(t, r.Rerank(context.Background(), clause, items))

	assert.Equal(t, "on-topic", items[0].Document.ChunkID)
}

func TestTermOverlapReranker_Deterministic(t *testing.T) {
	clause := "delay in possession entitles the allottee to interest"

	build := func() []*evidence.Evidence {
		return []*evidence.Evidence{
			rerankItem("a", "possession timeline obligations on the promoter", 0.5),
			rerankItem("b", "interest payable to the allottee for delay in possession", 0.5),
			rerankItem("c", "dispute resolution before the appellate tribunal", 0.5),
		}
	}

	r := NewTermOverlapReranker()
	first := build()
	require.NoError(t, r.Rerank(context.Background(), clause, first))

	for i := 0; i < 3; i++ {
		again := build()
		require.NoError(t, r.Rerank(context.Background(), clause, again))
		for j := range first {
			assert.Equal(t, first[j].Document.ChunkID, again[j].Document.ChunkID)
		}
	}
}

// slowReranker blocks until its context is cancelled.
type slowReranker struct{}

func (slowReranker) Rerank(ctx context.Context, clauseText string, items []*evidence.Evidence) error {
	<-ctx.Done()
	return ctx.Err()
}

func (slowReranker) Name() string { return "slow" }

func TestRerankWithTimeout_TimeoutKeepsFusedOrder(t *testing.T) {
	items := []*evidence.Evidence{
		rerankItem("first", "alpha", 0.9),
		rerankItem("second", "beta", 0.8),
	}

	applied, reason := rerankWithTimeout(context.Background(), slowReranker{}, "clause", items, 20*time.Millisecond)

	// Degraded: the fused order and scores survive untouched.
	assert.False(t, applied)
	assert.NotEmpty(t, reason)
	assert.Equal(t, "first", items[0].Document.ChunkID)
	assert.Equal(t, 0.9, items[0].Score)
}

func TestRerankWithTimeout_WindowBound(t *testing.T) {
	// Items beyond the rerank window keep their fused position.
	items := make([]*evidence.Evidence, MaxRerankWindow+3)
	for i := range items {
		items[i] = rerankItem(string(rune('a'+i)), "refund interest", 1.0-float64(i)*0.01)
	}
	tail := append([]*evidence.Evidence(nil), items[MaxRerankWindow:]...)

	applied, _ := rerankWithTimeout(context.Background(), NewTermOverlapReranker(), "refund interest", items, time.Second)
	require.True(t, applied)

	for i, item := range items[MaxRerankWindow:] {
		assert.Same(t, tail[i], item)
	}
}

func TestNoOpReranker(t *testing.T) {
	items := []*evidence.Evidence{rerankItem("x", "content", 0.5)}
	require.NoError(t, NoOpReranker{}.Rerank(context.Background(), "clause", items))
	assert.Equal(t, "x", items[0].Document.ChunkID)
}
