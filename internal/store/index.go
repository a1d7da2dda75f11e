package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gofrs/flock"

	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
)

// Index is one searchable corpus for a (jurisdiction, document-type) pair.
// It composes the dense vector store, the in-memory BM25 index, and the
// document metadata. The dense artifact and the metadata sidecar are
// persisted as a pair; a load that cannot prove they agree fails closed.
type Index struct {
	mu           sync.RWMutex
	jurisdiction string
	docType      statute.DocumentType

	dense   *DenseStore
	lexical *LexicalIndex

	docs      []*statute.Document
	byChunkID map[string]int // chunk ID -> insertion position

	// anchorFirst maps act_key|section -> first insertion position.
	// anchorDup records keys that matched more than one document.
	// anchorBase and anchorBaseDup mirror them keyed by base number, so
	// a probe for section "18" still finds a corpus holding only "18(1)".
	anchorFirst   map[string]int
	anchorDup     map[string]bool
	anchorBase    map[string]int
	anchorBaseDup map[string]bool

	closed bool
}

// NewIndex creates an empty in-memory index for building.
func NewIndex(jurisdiction string, docType statute.DocumentType, dimensions int) (*Index, error) {
	if jurisdiction == "" {
		return nil, riskerr.New(riskerr.ErrCodeInvalidInput, "jurisdiction must not be empty", nil)
	}
	if !statute.IsValidDocumentType(docType) {
		return nil, riskerr.New(riskerr.ErrCodeInvalidInput,
			fmt.Sprintf("unknown document type %q", docType), nil)
	}

	dense, err := NewDenseStore(DefaultVectorStoreConfig(dimensions))
	if err != nil {
		return nil, err
	}
	lexical, err := NewLexicalIndex()
	if err != nil {
		dense.Close()
		return nil, err
	}

	return &Index{
		jurisdiction:  jurisdiction,
		docType:       docType,
		dense:         dense,
		lexical:       lexical,
		byChunkID:     make(map[string]int),
		anchorFirst:   make(map[string]int),
		anchorDup:     make(map[string]bool),
		anchorBase:    make(map[string]int),
		anchorBaseDup: make(map[string]bool),
	}, nil
}

// Jurisdiction returns the jurisdiction this index serves.
func (x *Index) Jurisdiction() string { return x.jurisdiction }

// DocType returns the document type this index holds.
func (x *Index) DocType() statute.DocumentType { return x.docType }

// Dimensions returns the embedding dimension.
func (x *Index) Dimensions() int { return x.dense.Dimensions() }

// Add validates and indexes documents with their embeddings, in order.
// A single invalid document rejects the whole batch before anything is
// written, so the three stores never diverge.
func (x *Index) Add(ctx context.Context, docs []*statute.Document, vectors [][]float32) error {
	if len(docs) == 0 {
		return nil
	}
	if len(docs) != len(vectors) {
		return riskerr.New(riskerr.ErrCodeInvalidInput,
			fmt.Sprintf("documents and vectors length mismatch: %d vs %d", len(docs), len(vectors)), nil)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return riskerr.New(riskerr.ErrCodeIndexClosed, "index is closed", nil)
	}

	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			return err
		}
		if doc.Type != x.docType {
			return riskerr.SchemaError(
				fmt.Sprintf("document %s has type %q, index holds %q", doc.ChunkID, doc.Type, x.docType), nil).
				WithDetail("chunk_id", doc.ChunkID)
		}
		if doc.Jurisdiction != x.jurisdiction {
			return riskerr.SchemaError(
				fmt.Sprintf("document %s has jurisdiction %q, index serves %q",
					doc.ChunkID, doc.Jurisdiction, x.jurisdiction), nil).
				WithDetail("chunk_id", doc.ChunkID)
		}
		if _, exists := x.byChunkID[doc.ChunkID]; exists {
			return riskerr.SchemaError(
				fmt.Sprintf("duplicate chunk ID %s", doc.ChunkID), nil)
		}
	}

	ids := make([]string, len(docs))
	contents := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ChunkID
		contents[i] = doc.Content
	}

	if err := x.dense.Add(ctx, ids, vectors); err != nil {
		if dm, ok := err.(ErrDimensionMismatch); ok {
			return riskerr.DimensionMismatch(dm.Expected, dm.Got)
		}
		return err
	}
	if err := x.lexical.Index(ctx, ids, contents); err != nil {
		return err
	}

	for _, doc := range docs {
		pos := len(x.docs)
		x.docs = append(x.docs, doc)
		x.byChunkID[doc.ChunkID] = pos
		x.recordAnchorLocked(doc, pos)
	}
	return nil
}

// recordAnchorLocked registers a statutory document in the anchor lookup
// maps. First insertion wins; later matches only set the duplicate flag.
func (x *Index) recordAnchorLocked(doc *statute.Document, pos int) {
	if doc.ActOrRuleName == "" || doc.SectionOrRuleNumber == "" {
		return
	}
	key := anchorKey(doc.ActOrRuleName, doc.SectionOrRuleNumber)
	if _, seen := x.anchorFirst[key]; seen {
		x.anchorDup[key] = true
	} else {
		x.anchorFirst[key] = pos
	}

	if base := statute.BaseNumberOf(doc.SectionOrRuleNumber); base != "" {
		baseKey := anchorKey(doc.ActOrRuleName, base)
		if _, seen := x.anchorBase[baseKey]; seen {
			x.anchorBaseDup[baseKey] = true
		} else {
			x.anchorBase[baseKey] = pos
		}
	}
}

func anchorKey(act, section string) string {
	return statute.ActKey(act) + "|" + statute.NormalizeSectionNumber(section)
}

// SearchDense runs a nearest-neighbor query over the embedding space.
func (x *Index) SearchDense(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, riskerr.New(riskerr.ErrCodeIndexClosed, "index is closed", nil)
	}

	results, err := x.dense.Search(ctx, query, k)
	if err != nil {
		if dm, ok := err.(ErrDimensionMismatch); ok {
			return nil, riskerr.DimensionMismatch(dm.Expected, dm.Got)
		}
		return nil, err
	}
	return results, nil
}

// SearchLexical runs a BM25 keyword query.
func (x *Index) SearchLexical(ctx context.Context, query string, k int) ([]*LexicalResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, riskerr.New(riskerr.ErrCodeIndexClosed, "index is closed", nil)
	}
	return x.lexical.Search(ctx, query, k)
}

// Get returns the document for a chunk ID.
func (x *Index) Get(chunkID string) (*statute.Document, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	pos, ok := x.byChunkID[chunkID]
	if !ok {
		return nil, false
	}
	return x.docs[pos], true
}

// LookupAnchor finds the document matching an anchor by act key and
// normalized section number, falling back to a base-number match when no
// exact section is indexed. The second return reports whether more than
// one indexed document carries the same citation.
func (x *Index) LookupAnchor(anchor statute.Anchor) (*statute.Document, bool, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	key := anchorKey(anchor.ActOrRuleName, anchor.SectionOrRuleNumber)
	if pos, ok := x.anchorFirst[key]; ok {
		return x.docs[pos], x.anchorDup[key], true
	}

	if base := statute.BaseNumberOf(statute.NormalizeSectionNumber(anchor.SectionOrRuleNumber)); base != "" {
		baseKey := anchorKey(anchor.ActOrRuleName, base)
		if pos, ok := x.anchorBase[baseKey]; ok {
			return x.docs[pos], x.anchorBaseDup[baseKey], true
		}
	}
	return nil, false, false
}

// Count returns the number of indexed documents.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// All returns the documents in insertion order. The slice is shared; callers
// must not mutate it.
func (x *Index) All() []*statute.Document {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.docs
}

// artifactBase returns the path prefix for this index's files in dir.
func artifactBase(dir string, docType statute.DocumentType) string {
	return filepath.Join(dir, string(docType))
}

// Persist writes the dense artifact and the metadata sidecar to dir under an
// exclusive build lock. An existing pair at the same path is replaced.
func (x *Index) Persist(ctx context.Context, dir string, modelName string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return riskerr.New(riskerr.ErrCodeIndexClosed, "index is closed", nil)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, BuildLockFile))
	acquired, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire build lock: %w", err)
	}
	if !acquired {
		return riskerr.New(riskerr.ErrCodeIndexLocked,
			fmt.Sprintf("another build holds the lock for %s", dir), nil)
	}
	defer func() { _ = lock.Unlock() }()

	base := artifactBase(dir, x.docType)

	if err := x.dense.Save(base + VectorFileSuffix); err != nil {
		return err
	}

	// Fresh sidecar so stale rows from a previous build cannot survive.
	sidecarPath := base + SidecarFileSuffix
	_ = os.Remove(sidecarPath)
	sidecar, err := OpenSidecar(sidecarPath)
	if err != nil {
		return err
	}
	defer sidecar.Close()

	if err := sidecar.SaveDocuments(ctx, x.docs); err != nil {
		return err
	}
	if err := sidecar.SetState(ctx, StateKeyDimensions, strconv.Itoa(x.dense.Dimensions())); err != nil {
		return err
	}
	if err := sidecar.SetState(ctx, StateKeyModel, modelName); err != nil {
		return err
	}
	if err := sidecar.SetState(ctx, StateKeyDocCount, strconv.Itoa(len(x.docs))); err != nil {
		return err
	}

	slog.Info("index persisted",
		slog.String("jurisdiction", x.jurisdiction),
		slog.String("doc_type", string(x.docType)),
		slog.Int("documents", len(x.docs)))
	return nil
}

// LoadIndex reads a persisted index pair from dir and rebuilds the in-memory
// lexical index from the sidecar. Any disagreement between the artifacts, or
// any row that fails schema validation, returns a corrupt-index error; a
// partially usable index is never returned.
func LoadIndex(ctx context.Context, dir, jurisdiction string, docType statute.DocumentType, dimensions int) (*Index, error) {
	base := artifactBase(dir, docType)

	if _, err := os.Stat(base + VectorFileSuffix); err != nil {
		return nil, riskerr.New(riskerr.ErrCodeIndexNotFound,
			fmt.Sprintf("no %s index for jurisdiction %s at %s", docType, jurisdiction, dir), err)
	}

	sidecar, err := OpenSidecarReadOnly(base + SidecarFileSuffix)
	if err != nil {
		return nil, err
	}
	defer sidecar.Close()

	if err := validateIndexState(ctx, sidecar, dimensions); err != nil {
		return nil, err
	}

	docs, err := sidecar.All(ctx)
	if err != nil {
		return nil, err
	}

	x, err := NewIndex(jurisdiction, docType, dimensions)
	if err != nil {
		return nil, err
	}

	if err := x.dense.Load(base + VectorFileSuffix); err != nil {
		x.Close()
		return nil, riskerr.CorruptIndex("load dense vector store", err)
	}

	if x.dense.Count() != len(docs) {
		x.Close()
		return nil, riskerr.CorruptIndex(
			fmt.Sprintf("vector store holds %d entries, sidecar holds %d rows",
				x.dense.Count(), len(docs)), nil).
			WithDetail("doc_type", string(docType))
	}

	ids := make([]string, len(docs))
	contents := make([]string, len(docs))
	for i, doc := range docs {
		if err := doc.Validate(); err != nil {
			x.Close()
			return nil, riskerr.CorruptIndex(
				fmt.Sprintf("sidecar row %s fails schema validation", doc.ChunkID), err)
		}
		if doc.Jurisdiction != jurisdiction {
			x.Close()
			return nil, riskerr.CorruptIndex(
				fmt.Sprintf("sidecar row %s belongs to jurisdiction %q, expected %q",
					doc.ChunkID, doc.Jurisdiction, jurisdiction), nil)
		}
		ids[i] = doc.ChunkID
		contents[i] = doc.Content
	}

	if err := x.lexical.Index(ctx, ids, contents); err != nil {
		x.Close()
		return nil, err
	}

	for i, doc := range docs {
		x.docs = append(x.docs, doc)
		x.byChunkID[doc.ChunkID] = i
		x.recordAnchorLocked(doc, i)
	}

	slog.Debug("index loaded",
		slog.String("jurisdiction", jurisdiction),
		slog.String("doc_type", string(docType)),
		slog.Int("documents", len(docs)))
	return x, nil
}

// validateIndexState checks the sidecar's recorded build state against the
// expectations of the running deployment.
func validateIndexState(ctx context.Context, sidecar *Sidecar, dimensions int) error {
	dimStr, err := sidecar.GetState(ctx, StateKeyDimensions)
	if err != nil {
		return err
	}
	if dimStr != "" {
		dims, err := strconv.Atoi(dimStr)
		if err != nil {
			return riskerr.CorruptIndex(
				fmt.Sprintf("invalid recorded dimensions %q", dimStr), err)
		}
		if dims != dimensions {
			return riskerr.DimensionMismatch(dimensions, dims)
		}
	}

	countStr, err := sidecar.GetState(ctx, StateKeyDocCount)
	if err != nil {
		return err
	}
	if countStr != "" {
		expected, err := strconv.Atoi(countStr)
		if err != nil {
			return riskerr.CorruptIndex(
				fmt.Sprintf("invalid recorded document count %q", countStr), err)
		}
		actual, err := sidecar.Count(ctx)
		if err != nil {
			return err
		}
		if actual != expected {
			return riskerr.CorruptIndex(
				fmt.Sprintf("sidecar records %d documents but holds %d rows", expected, actual), nil)
		}
	}
	return nil
}

// Close releases all component stores.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true

	var firstErr error
	if x.dense != nil {
		if err := x.dense.Close(); err != nil {
			firstErr = err
		}
	}
	if x.lexical != nil {
		if err := x.lexical.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
