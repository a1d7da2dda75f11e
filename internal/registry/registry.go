// Package registry resolves (jurisdiction, document-type) pairs to loaded
// indexes. Indexes live under <base>/<jurisdiction>/; each jurisdiction
// directory holds one artifact pair per document type. Loaded indexes are
// cached until an explicit reload; nothing watches the filesystem.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
	"github.com/shohbitgupta/contract-risk-agent/internal/store"
)

// Registry caches loaded indexes keyed by jurisdiction and document type.
// Resolution is strict: an unknown jurisdiction is an error, never a
// fallback to another jurisdiction's law.
type Registry struct {
	baseDir    string
	dimensions int

	mu    sync.RWMutex
	cache map[string]map[statute.DocumentType]*store.Index

	closed bool
}

// New creates a registry rooted at baseDir.
func New(baseDir string, dimensions int) (*Registry, error) {
	if baseDir == "" {
		return nil, riskerr.New(riskerr.ErrCodeConfigInvalid, "registry base directory must not be empty", nil)
	}
	if dimensions <= 0 {
		return nil, riskerr.New(riskerr.ErrCodeConfigInvalid,
			fmt.Sprintf("registry requires positive dimensions, got %d", dimensions), nil)
	}
	return &Registry{
		baseDir:    baseDir,
		dimensions: dimensions,
		cache:      make(map[string]map[statute.DocumentType]*store.Index),
	}, nil
}

// jurisdictionDir returns the on-disk directory for a jurisdiction.
func (r *Registry) jurisdictionDir(jurisdiction string) string {
	return filepath.Join(r.baseDir, jurisdiction)
}

// HasJurisdiction reports whether an index directory exists on disk.
func (r *Registry) HasJurisdiction(jurisdiction string) bool {
	info, err := os.Stat(r.jurisdictionDir(jurisdiction))
	return err == nil && info.IsDir()
}

// Resolve returns the index for a (jurisdiction, document-type) pair,
// loading it on first use. A jurisdiction with no index directory returns
// an unknown-jurisdiction error; callers surface that instead of silently
// searching another state's law.
func (r *Registry) Resolve(ctx context.Context, jurisdiction string, docType statute.DocumentType) (*store.Index, error) {
	if jurisdiction == "" {
		return nil, riskerr.New(riskerr.ErrCodeInvalidInput, "jurisdiction must not be empty", nil)
	}
	if !statute.IsValidDocumentType(docType) {
		return nil, riskerr.New(riskerr.ErrCodeInvalidInput,
			fmt.Sprintf("unknown document type %q", docType), nil)
	}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, riskerr.New(riskerr.ErrCodeIndexClosed, "registry is closed", nil)
	}
	if byType, ok := r.cache[jurisdiction]; ok {
		if idx, ok := byType[docType]; ok {
			r.mu.RUnlock()
			return idx, nil
		}
	}
	r.mu.RUnlock()

	if !r.HasJurisdiction(jurisdiction) {
		return nil, riskerr.UnknownJurisdiction(jurisdiction)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, riskerr.New(riskerr.ErrCodeIndexClosed, "registry is closed", nil)
	}
	// Another goroutine may have loaded it while we waited.
	if byType, ok := r.cache[jurisdiction]; ok {
		if idx, ok := byType[docType]; ok {
			return idx, nil
		}
	}

	idx, err := store.LoadIndex(ctx, r.jurisdictionDir(jurisdiction), jurisdiction, docType, r.dimensions)
	if err != nil {
		return nil, err
	}

	if r.cache[jurisdiction] == nil {
		r.cache[jurisdiction] = make(map[statute.DocumentType]*store.Index)
	}
	r.cache[jurisdiction][docType] = idx
	return idx, nil
}

// ResolveAvailable returns the loaded indexes for the requested document
// types, skipping types that have no index on disk. It fails on any error
// other than index-not-found: a corrupt artifact must not degrade into a
// smaller corpus.
func (r *Registry) ResolveAvailable(ctx context.Context, jurisdiction string, docTypes []statute.DocumentType) (map[statute.DocumentType]*store.Index, error) {
	if !r.HasJurisdiction(jurisdiction) {
		return nil, riskerr.UnknownJurisdiction(jurisdiction)
	}

	out := make(map[statute.DocumentType]*store.Index, len(docTypes))
	for _, dt := range docTypes {
		idx, err := r.Resolve(ctx, jurisdiction, dt)
		if err != nil {
			if riskerr.GetCode(err) == riskerr.ErrCodeIndexNotFound {
				continue
			}
			return nil, err
		}
		out[dt] = idx
	}
	return out, nil
}

// Reload drops every cached index for a jurisdiction and reloads the given
// document types from disk atomically: searches either see the old set or
// the new set, never a mix.
func (r *Registry) Reload(ctx context.Context, jurisdiction string, docTypes []statute.DocumentType) error {
	if !r.HasJurisdiction(jurisdiction) {
		return riskerr.UnknownJurisdiction(jurisdiction)
	}

	// Load the replacement set before taking the write lock so resolution
	// stalls only for the swap itself.
	fresh := make(map[statute.DocumentType]*store.Index, len(docTypes))
	for _, dt := range docTypes {
		idx, err := store.LoadIndex(ctx, r.jurisdictionDir(jurisdiction), jurisdiction, dt, r.dimensions)
		if err != nil {
			if riskerr.GetCode(err) == riskerr.ErrCodeIndexNotFound {
				continue
			}
			for _, loaded := range fresh {
				_ = loaded.Close()
			}
			return err
		}
		fresh[dt] = idx
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		for _, loaded := range fresh {
			_ = loaded.Close()
		}
		return riskerr.New(riskerr.ErrCodeIndexClosed, "registry is closed", nil)
	}
	old := r.cache[jurisdiction]
	r.cache[jurisdiction] = fresh
	r.mu.Unlock()

	for _, idx := range old {
		_ = idx.Close()
	}

	slog.Info("registry reloaded",
		slog.String("jurisdiction", jurisdiction),
		slog.Int("indexes", len(fresh)))
	return nil
}

// ListJurisdictions returns the jurisdiction directories present on disk,
// sorted.
func (r *Registry) ListJurisdictions() ([]string, error) {
	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registry base directory: %w", err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Close releases every cached index.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	for _, byType := range r.cache {
		for _, idx := range byType {
			if err := idx.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	r.cache = nil
	return firstErr
}
