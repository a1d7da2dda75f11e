package anchor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shohbitgupta/contract-risk-agent/internal/evidence"
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
)

func sectionDoc(chunkID, section string) *statute.Document {
	return &statute.Document{
		Content:             "Text of section " + section,
		Source:              "RERA Act, 2016 (Central)",
		ChunkID:             chunkID,
		Type:                statute.DocTypeActSection,
		Jurisdiction:        "IN-MH",
		ActOrRuleName:       "RERA Act, 2016",
		SectionOrRuleNumber: section,
		BaseNumber:          statute.BaseNumberOf(section),
	}
}

func plainDoc(chunkID string) *statute.Document {
	return &statute.Document{
		Content:      "Model clause text",
		Source:       "Model Agreement",
		ChunkID:      chunkID,
		Type:         statute.DocTypeModelClause,
		Jurisdiction: "IN-MH",
	}
}

func rankedPool(docs ...*statute.Document) []*evidence.Evidence {
	pool := make([]*evidence.Evidence, len(docs))
	for i, doc := range docs {
		pool[i] = &evidence.Evidence{
			Document:    doc,
			Score:       1.0 - float64(i)*0.05,
			SourceStage: evidence.StageDense,
			DenseRank:   i + 1,
		}
	}
	return pool
}

// fakeLookup mimics an index's targeted citation probe.
type fakeLookup struct {
	docs map[string]*statute.Document // normalized section -> doc
	dups map[string]bool
}

func (f *fakeLookup) LookupAnchor(a statute.Anchor) (*statute.Document, bool, bool) {
	key := statute.NormalizeSectionNumber(a.SectionOrRuleNumber)
	if doc, ok := f.docs[key]; ok {
		return doc, f.dups[key], true
	}
	// Base-number fallback, matching the index probe contract.
	if base := statute.BaseNumberOf(key); base != "" {
		for sec, doc := range f.docs {
			if statute.BaseNumberOf(sec) == base {
				return doc, f.dups[sec], true
			}
		}
	}
	return nil, false, false
}

func TestMatches_ExactSection(t *testing.T) {
	doc := sectionDoc("s18-1", "18(1)")
	assert.True(t, Matches(doc, statute.NewAnchor("RERA Act, 2016", "18(1)")))
	assert.False(t, Matches(doc, statute.NewAnchor("RERA Act, 2016", "19")))
}

func TestMatches_ActNameVariants(t *testing.T) {
	doc := sectionDoc("s18", "18")
	assert.True(t, Matches(doc, statute.NewAnchor("Real Estate (Regulation and Development) Act, 2016", "18")))
	assert.True(t, Matches(doc, statute.NewAnchor("RERA Act", "Section 18")))
}

func TestMatches_BaseNumberFallback(t *testing.T) {
	// An anchor for the base section is satisfied by a sub-section doc.
	sub := sectionDoc("s19-4", "19(4)")
	assert.True(t, Matches(sub, statute.NewAnchor("RERA Act, 2016", "19")))

	// And an anchor for a sub-section is satisfied by the base doc.
	base := sectionDoc("s19", "19")
	assert.True(t, Matches(base, statute.NewAnchor("RERA Act, 2016", "19(4)")))

	// But not across different base numbers.
	assert.False(t, Matches(sub, statute.NewAnchor("RERA Act, 2016", "18")))
}

func TestMatches_NonStatutoryDocNeverMatches(t *testing.T) {
	assert.False(t, Matches(plainDoc("m1"), statute.NewAnchor("RERA Act, 2016", "18")))
}

func TestEnforce_AnchorBelowCutIsSpliced(t *testing.T) {
	// Given: a pool of 10 where the Section 18 doc sits at rank 7
	docs := make([]*statute.Document, 10)
	for i := range docs {
		docs[i] = plainDoc(fmt.Sprintf("m%d", i))
	}
	docs[6] = sectionDoc("s18", "18")
	pool := rankedPool(docs...)

	anchors := []statute.Anchor{statute.NewAnchor("RERA Act, 2016", "18")}
	diag := &evidence.Diagnostics{}

	// When: enforcing with topK=5
	result, satisfied, unmatched := Enforce(pool, anchors, 5, nil, diag)

	// Then: the pack still has 5 items, Section 18 among them
	require.Len(t, result, 5)
	assert.Len(t, satisfied, 1)
	assert.Empty(t, unmatched)
	assert.Equal(t, 1, diag.ForcedAnchors)

	assert.Equal(t, "s18", result[4].Document.ChunkID)
	assert.Equal(t, evidence.StageForcedAnchor, result[4].SourceStage)

	// The evicted item is the former rank 5; ranks 1-4 are untouched.
	for i := 0; i < 4; i++ {
		assert.Equal(t, fmt.Sprintf("m%d", i), result[i].Document.ChunkID)
	}
}

func TestEnforce_AnchorInsideCutStaysPut(t *testing.T) {
	pool := rankedPool(sectionDoc("s18", "18"), plainDoc("m1"), plainDoc("m2"))
	diag := &evidence.Diagnostics{}

	result, satisfied, _ := Enforce(pool,
		[]statute.Anchor{statute.NewAnchor("RERA Act, 2016", "18")}, 3, nil, diag)

	require.Len(t, result, 3)
	assert.Equal(t, "s18", result[0].Document.ChunkID)
	assert.Equal(t, evidence.StageDense, result[0].SourceStage)
	assert.NotNil(t, result[0].MatchedAnchor)
	assert.Len(t, satisfied, 1)
	assert.Equal(t, 0, diag.ForcedAnchors)
}

func TestEnforce_UnretrievedAnchorReportedNotIndexed(t *testing.T) {
	pool := rankedPool(plainDoc("m1"), plainDoc("m2"))
	diag := &evidence.Diagnostics{}
	lookup := &fakeLookup{docs: map[string]*statute.Document{}}

	result, satisfied, unmatched := Enforce(pool,
		[]statute.Anchor{statute.NewAnchor("RERA Act, 2016", "40")}, 2, []Lookup{lookup}, diag)

	// The pack is returned without fabricated entries.
	require.Len(t, result, 2)
	assert.Empty(t, satisfied)
	require.Len(t, unmatched, 1)
	assert.Contains(t, diag.NotIndexedAnchors, "RERA Act, 2016 s.40")
}

func TestEnforce_UnretrievedButIndexedAnchorNotListedAsMissing(t *testing.T) {
	pool := rankedPool(plainDoc("m1"))
	diag := &evidence.Diagnostics{}
	lookup := &fakeLookup{docs: map[string]*statute.Document{
		"40": sectionDoc("s40", "40"),
	}}

	_, _, unmatched := Enforce(pool,
		[]statute.Anchor{statute.NewAnchor("RERA Act, 2016", "40")}, 1, []Lookup{lookup}, diag)

	// Unmatched, but the diagnostics make clear it exists in the corpus.
	require.Len(t, unmatched, 1)
	assert.Empty(t, diag.NotIndexedAnchors)
}

func TestEnforce_BaseAnchorLookupFindsIndexedSubSection(t *testing.T) {
	// Only the sub-section document is indexed; a base-section citation
	// that never made the pool must still count as present in the corpus.
	pool := rankedPool()
	diag := &evidence.Diagnostics{}
	lookup := &fakeLookup{docs: map[string]*statute.Document{
		"18(1)": sectionDoc("s18-1", "18(1)"),
	}}

	_, satisfied, unmatched := Enforce(pool,
		[]statute.Anchor{statute.NewAnchor("RERA Act, 2016", "18")}, 5, []Lookup{lookup}, diag)

	assert.Empty(t, satisfied)
	require.Len(t, unmatched, 1)
	assert.Empty(t, diag.NotIndexedAnchors)
}

func TestEnforce_DuplicateCitationSetsWarning(t *testing.T) {
	pool := rankedPool(sectionDoc("rule6-first", "6"), plainDoc("m1"))
	diag := &evidence.Diagnostics{}
	lookup := &fakeLookup{
		docs: map[string]*statute.Document{"6": sectionDoc("rule6-first", "6")},
		dups: map[string]bool{"6": true},
	}

	_, satisfied, _ := Enforce(pool,
		[]statute.Anchor{statute.NewAnchor("RERA Act, 2016", "6")}, 2, []Lookup{lookup}, diag)

	assert.Len(t, satisfied, 1)
	assert.True(t, diag.DuplicateAnchorWarning)
}

func TestEnforce_ExactMatchBeatsBaseFallback(t *testing.T) {
	// Pool holds the sub-section doc at a better rank than the exact doc.
	pool := rankedPool(sectionDoc("s19-4", "19(4)"), sectionDoc("s19", "19"), plainDoc("m1"))
	diag := &evidence.Diagnostics{}

	result, satisfied, _ := Enforce(pool,
		[]statute.Anchor{statute.NewAnchor("RERA Act, 2016", "19")}, 3, nil, diag)

	require.Len(t, satisfied, 1)
	// The exact Section 19 document carries the anchor, not the 19(4) one.
	assert.Nil(t, result[0].MatchedAnchor)
	require.NotNil(t, result[1].MatchedAnchor)
	assert.Equal(t, "19", result[1].MatchedAnchor.SectionOrRuleNumber)
}

func TestEnforce_WholeSectionBeatsSiblingSubSection(t *testing.T) {
	// Pool holds a sibling sub-section at a better rank than the whole
	// section; neither is an exact match for the 18(2) anchor.
	pool := rankedPool(sectionDoc("s18-1", "18(1)"), sectionDoc("s18", "18"), plainDoc("m1"))
	diag := &evidence.Diagnostics{}

	result, satisfied, _ := Enforce(pool,
		[]statute.Anchor{statute.NewAnchor("RERA Act, 2016", "18(2)")}, 3, nil, diag)

	require.Len(t, satisfied, 1)
	// "18" contains 18(2); "18(1)" does not, despite its rank.
	assert.Nil(t, result[0].MatchedAnchor)
	require.NotNil(t, result[1].MatchedAnchor)
	assert.Equal(t, "s18", result[1].Document.ChunkID)
}

func TestEnforce_MultipleForcedAnchorsKeepPoolOrder(t *testing.T) {
	docs := make([]*statute.Document, 8)
	for i := range docs {
		docs[i] = plainDoc(fmt.Sprintf("m%d", i))
	}
	docs[5] = sectionDoc("s18", "18")
	docs[7] = sectionDoc("s19", "19")
	pool := rankedPool(docs...)

	anchors := []statute.Anchor{
		statute.NewAnchor("RERA Act, 2016", "19"),
		statute.NewAnchor("RERA Act, 2016", "18"),
	}
	diag := &evidence.Diagnostics{}

	result, satisfied, _ := Enforce(pool, anchors, 4, nil, diag)

	require.Len(t, result, 4)
	assert.Len(t, satisfied, 2)
	assert.Equal(t, 2, diag.ForcedAnchors)
	// Forced items keep their relative pool order at the tail.
	assert.Equal(t, "s18", result[2].Document.ChunkID)
	assert.Equal(t, "s19", result[3].Document.ChunkID)
}
