package ingest

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/shohbitgupta/contract-risk-agent/internal/embed"
	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
	"github.com/shohbitgupta/contract-risk-agent/internal/store"
)

// BuildOptions describes one statute corpus to index.
type BuildOptions struct {
	ActName      string
	DocType      statute.DocumentType
	Jurisdiction string
	State        string // empty for central law
	Version      string
	IndexName    string // chunk ID prefix; defaults to the doc type
	Source       string // defaults to the act name
}

// BuildResult reports what a build produced.
type BuildResult struct {
	Documents int
	Dir       string
}

// Builder turns statute text into a persisted index pair.
type Builder struct {
	embedder embed.Embedder
	baseDir  string
}

// NewBuilder creates a Builder writing under baseDir/<jurisdiction>/.
func NewBuilder(embedder embed.Embedder, baseDir string) (*Builder, error) {
	if embedder == nil {
		return nil, riskerr.New(riskerr.ErrCodeConfigInvalid, "builder requires an embedder", nil)
	}
	if baseDir == "" {
		return nil, riskerr.New(riskerr.ErrCodeConfigInvalid, "builder requires a base directory", nil)
	}
	return &Builder{embedder: embedder, baseDir: baseDir}, nil
}

// Build parses fullText into sections, embeds them, and persists the index
// pair for (jurisdiction, doc type). Any invalid section aborts the build
// before anything is written.
func (b *Builder) Build(ctx context.Context, fullText string, opts BuildOptions) (*BuildResult, error) {
	if opts.ActName == "" {
		return nil, riskerr.New(riskerr.ErrCodeInvalidInput, "act name must not be empty", nil)
	}
	if opts.Jurisdiction == "" {
		return nil, riskerr.New(riskerr.ErrCodeInvalidInput, "jurisdiction must not be empty", nil)
	}
	if !statute.IsValidDocumentType(opts.DocType) {
		return nil, riskerr.New(riskerr.ErrCodeInvalidInput, "unknown document type", nil).
			WithDetail("document_type", string(opts.DocType))
	}

	indexName := opts.IndexName
	if indexName == "" {
		indexName = string(opts.DocType)
	}
	source := opts.Source
	if source == "" {
		source = opts.ActName
	}
	actName := statute.NormalizeActName(opts.ActName)

	sections, err := ParseSections(fullText)
	if err != nil {
		return nil, err
	}

	docs := make([]*statute.Document, 0, len(sections))
	texts := make([]string, 0, len(sections))
	for _, sec := range sections {
		section := statute.NormalizeSectionNumber(sec.SectionID)
		doc := &statute.Document{
			Content:             sec.Content,
			Source:              source,
			ChunkID:             SectionChunkID(indexName, sec.SectionID),
			Type:                opts.DocType,
			Jurisdiction:        opts.Jurisdiction,
			ActOrRuleName:       actName,
			SectionOrRuleNumber: section,
			BaseNumber:          statute.BaseNumberOf(section),
			State:               opts.State,
			Title:               sec.Title,
			Version:             opts.Version,
		}
		if err := doc.Validate(); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
		texts = append(texts, doc.Content)
	}

	vectors, err := embedInBatches(ctx, b.embedder, texts)
	if err != nil {
		return nil, err
	}

	idx, err := store.NewIndex(opts.Jurisdiction, opts.DocType, b.embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	defer func() { _ = idx.Close() }()

	if err := idx.Add(ctx, docs, vectors); err != nil {
		return nil, err
	}

	dir := filepath.Join(b.baseDir, opts.Jurisdiction)
	if err := idx.Persist(ctx, dir, b.embedder.ModelName()); err != nil {
		return nil, err
	}

	slog.Info("statute corpus indexed",
		slog.String("act", actName),
		slog.String("jurisdiction", opts.Jurisdiction),
		slog.String("doc_type", string(opts.DocType)),
		slog.Int("sections", len(docs)))

	return &BuildResult{Documents: len(docs), Dir: dir}, nil
}

// embedInBatches embeds texts in slices of the default batch size, retrying
// retryable backend failures per batch. A large act is never sent to the
// backend as one oversized request.
func embedInBatches(ctx context.Context, embedder embed.Embedder, texts []string) ([][]float32, error) {
	batchSize := embed.DefaultBatchSize
	if batchSize > embed.MaxBatchSize {
		batchSize = embed.MaxBatchSize
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		var batch [][]float32
		err := embed.WithRetry(ctx, embed.DefaultRetryConfig(), func() error {
			var embedErr error
			batch, embedErr = embedder.EmbedBatch(ctx, texts[start:end])
			return embedErr
		})
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
