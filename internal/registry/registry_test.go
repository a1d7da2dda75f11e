package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
	"github.com/shohbitgupta/contract-risk-agent/internal/store"
)

const testDims = 8

func buildTestIndex(t *testing.T, dir, jurisdiction string, docType statute.DocumentType, docs []*statute.Document) {
	t.Helper()
	ctx := context.Background()

	idx, err := store.NewIndex(jurisdiction, docType, testDims)
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	vectors := make([][]float32, len(docs))
	for i := range vectors {
		v := make([]float32, testDims)
		for j := range v {
			v[j] = float32((i+j)%5) + 0.5
		}
		vectors[i] = v
	}

	require.NoError(t, idx.Add(ctx, docs, vectors))
	require.NoError(t, idx.Persist(ctx, filepath.Join(dir, jurisdiction), "static-hash-256"))
}

func mhSectionDoc(chunkID, section, base string) *statute.Document {
	return &statute.Document{
		Content:             "Text of section " + section,
		Source:              "RERA Act, 2016 (Central)",
		ChunkID:             chunkID,
		Type:                statute.DocTypeActSection,
		Jurisdiction:        "IN-MH",
		ActOrRuleName:       "RERA Act, 2016",
		SectionOrRuleNumber: section,
		BaseNumber:          base,
	}
}

func TestRegistry_Resolve_LoadsAndCaches(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir, "IN-MH", statute.DocTypeActSection,
		[]*statute.Document{mhSectionDoc("s18", "18", "18")})

	reg, err := New(dir, testDims)
	require.NoError(t, err)
	defer func() { _ = reg.Close() }()

	// When: resolving twice
	first, err := reg.Resolve(context.Background(), "IN-MH", statute.DocTypeActSection)
	require.NoError(t, err)
	second, err := reg.Resolve(context.Background(), "IN-MH", statute.DocTypeActSection)
	require.NoError(t, err)

	// Then: the same loaded index is returned
	assert.Same(t, first, second)
	assert.Equal(t, 1, first.Count())
}

func TestRegistry_Resolve_UnknownJurisdictionNoFallback(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir, "IN-MH", statute.DocTypeActSection,
		[]*statute.Document{mhSectionDoc("s18", "18", "18")})

	reg, err := New(dir, testDims)
	require.NoError(t, err)
	defer func() { _ = reg.Close() }()

	// When: asking for a jurisdiction with no index directory
	_, err = reg.Resolve(context.Background(), "IN-KA", statute.DocTypeActSection)

	// Then: an explicit error, never another jurisdiction's corpus
	require.Error(t, err)
	assert.Equal(t, riskerr.ErrCodeUnknownJurisdiction, riskerr.GetCode(err))
}

func TestRegistry_ResolveAvailable_SkipsMissingTypes(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir, "IN-MH", statute.DocTypeActSection,
		[]*statute.Document{mhSectionDoc("s18", "18", "18")})

	reg, err := New(dir, testDims)
	require.NoError(t, err)
	defer func() { _ = reg.Close() }()

	indexes, err := reg.ResolveAvailable(context.Background(), "IN-MH",
		[]statute.DocumentType{statute.DocTypeActSection, statute.DocTypeRule})
	require.NoError(t, err)

	// Only act-section exists; rule is skipped without error.
	assert.Len(t, indexes, 1)
	assert.Contains(t, indexes, statute.DocTypeActSection)
}

func TestRegistry_Reload_SwapsToNewCorpus(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	buildTestIndex(t, dir, "IN-MH", statute.DocTypeActSection,
		[]*statute.Document{mhSectionDoc("s18", "18", "18")})

	reg, err := New(dir, testDims)
	require.NoError(t, err)
	defer func() { _ = reg.Close() }()

	before, err := reg.Resolve(ctx, "IN-MH", statute.DocTypeActSection)
	require.NoError(t, err)
	assert.Equal(t, 1, before.Count())

	// Given: a rebuilt on-disk index with more documents
	buildTestIndex(t, dir, "IN-MH", statute.DocTypeActSection, []*statute.Document{
		mhSectionDoc("s18", "18", "18"),
		mhSectionDoc("s19-4", "19(4)", "19"),
	})

	// Resolution still serves the cached corpus until an explicit reload.
	cached, err := reg.Resolve(ctx, "IN-MH", statute.DocTypeActSection)
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Count())

	// When: reloading explicitly
	require.NoError(t, reg.Reload(ctx, "IN-MH", []statute.DocumentType{statute.DocTypeActSection}))

	// Then: resolution serves the new corpus
	after, err := reg.Resolve(ctx, "IN-MH", statute.DocTypeActSection)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Count())
	assert.NotSame(t, before, after)
}

func TestRegistry_ListJurisdictions(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir, "IN-MH", statute.DocTypeActSection,
		[]*statute.Document{mhSectionDoc("s18", "18", "18")})

	kaDoc := mhSectionDoc("s18", "18", "18")
	kaDoc.Jurisdiction = "IN-KA"
	buildTestIndex(t, dir, "IN-KA", statute.DocTypeActSection, []*statute.Document{kaDoc})

	reg, err := New(dir, testDims)
	require.NoError(t, err)
	defer func() { _ = reg.Close() }()

	jurisdictions, err := reg.ListJurisdictions()
	require.NoError(t, err)
	assert.Equal(t, []string{"IN-KA", "IN-MH"}, jurisdictions)
}
