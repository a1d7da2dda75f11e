package retrieval

import (
	"sort"

	"github.com/shohbitgupta/contract-risk-agent/internal/evidence"
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
	"github.com/shohbitgupta/contract-risk-agent/internal/store"
)

// Weights balances the two retrieval pools when fusing scores.
type Weights struct {
	Dense   float64 `yaml:"dense" json:"dense"`
	Lexical float64 `yaml:"lexical" json:"lexical"`
}

// DefaultWeights favors semantic similarity while keeping exact statutory
// terminology competitive.
func DefaultWeights() Weights {
	return Weights{Dense: 0.6, Lexical: 0.4}
}

// Valid reports whether the weights are usable.
func (w Weights) Valid() bool {
	return w.Dense >= 0 && w.Lexical >= 0 && w.Dense+w.Lexical > 0
}

// candidate accumulates per-pool scores for one chunk during fusion.
type candidate struct {
	doc          *statute.Document
	dense        float64
	lexical      float64
	denseRank    int
	lexicalRank  int
	matchedTerms []string
}

// docLookup resolves chunk IDs to documents. store.Index satisfies it.
type docLookup interface {
	Get(chunkID string) (*statute.Document, bool)
}

// fuse merges dense and lexical result pools into one ranked candidate
// list. Each pool's scores are min-max normalized independently, then
// combined with the given weights. Ranking ties resolve by pool presence
// (documents found by both searches first), then by normalized dense score,
// then by chunk ID, so the output is deterministic for a given corpus.
func fuse(dense []*store.VectorResult, lexical []*store.LexicalResult, weights Weights, docs docLookup) []*evidence.Evidence {
	byID := make(map[string]*candidate)

	denseScores := make([]float64, len(dense))
	for i, r := range dense {
		denseScores[i] = float64(r.Score)
	}
	normDense := minMaxNormalize(denseScores)

	for i, r := range dense {
		doc, ok := docs.Get(r.ChunkID)
		if !ok {
			continue
		}
		byID[r.ChunkID] = &candidate{
			doc:       doc,
			dense:     normDense[i],
			denseRank: i + 1,
		}
	}

	lexScores := make([]float64, len(lexical))
	for i, r := range lexical {
		lexScores[i] = r.Score
	}
	normLex := minMaxNormalize(lexScores)

	for i, r := range lexical {
		if c, ok := byID[r.ChunkID]; ok {
			c.lexical = normLex[i]
			c.lexicalRank = i + 1
			c.matchedTerms = r.MatchedTerms
			continue
		}
		doc, ok := docs.Get(r.ChunkID)
		if !ok {
			continue
		}
		byID[r.ChunkID] = &candidate{
			doc:          doc,
			lexical:      normLex[i],
			lexicalRank:  i + 1,
			matchedTerms: r.MatchedTerms,
		}
	}

	total := weights.Dense + weights.Lexical
	out := make([]*evidence.Evidence, 0, len(byID))
	for _, c := range byID {
		score := (weights.Dense*c.dense + weights.Lexical*c.lexical) / total
		stage := evidence.StageDense
		if c.denseRank == 0 {
			stage = evidence.StageLexical
		}
		out = append(out, &evidence.Evidence{
			Document:     c.doc,
			Score:        score,
			SourceStage:  stage,
			DenseScore:   c.dense,
			LexicalScore: c.lexical,
			DenseRank:    c.denseRank,
			LexicalRank:  c.lexicalRank,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.InBothPools() != b.InBothPools() {
			return a.InBothPools()
		}
		if a.DenseScore != b.DenseScore {
			return a.DenseScore > b.DenseScore
		}
		return a.Document.ChunkID < b.Document.ChunkID
	})

	return out
}

// minMaxNormalize maps scores into [0,1] per pool. A pool whose scores are
// all equal normalizes to 1.0 for every member: presence in the pool is the
// only signal it carries.
func minMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	out := make([]float64, len(scores))
	if max == min {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}
