package cmd

import (
	"github.com/shohbitgupta/contract-risk-agent/internal/config"
	"github.com/shohbitgupta/contract-risk-agent/internal/embed"
	"github.com/shohbitgupta/contract-risk-agent/internal/registry"
	"github.com/shohbitgupta/contract-risk-agent/internal/retrieval"
)

// newEmbedder builds the configured embedding stack: provider wrapped in a
// call timeout, wrapped in an LRU cache. Config validation guarantees the
// provider is known before this runs.
func newEmbedder(cfg *config.Config) embed.Embedder {
	var inner embed.Embedder = embed.NewStaticEmbedder()
	inner = embed.NewTimeoutEmbedder(inner, cfg.Embedding.Timeout)
	return embed.NewCachedEmbedder(inner, cfg.Embedding.CacheSize)
}

// newRegistry opens the index registry rooted at the configured index dir.
func newRegistry(cfg *config.Config, embedder embed.Embedder) (*registry.Registry, error) {
	return registry.New(cfg.Paths.IndexDir, embedder.Dimensions())
}

// newOrchestrator wires the retrieval pipeline from config.
func newOrchestrator(cfg *config.Config, reg *registry.Registry, embedder embed.Embedder) (*retrieval.Orchestrator, error) {
	return retrieval.New(reg, embedder, retrieval.NewTermOverlapReranker(), retrieval.Options{
		TopK:          cfg.Retrieval.TopK,
		OverFetch:     cfg.Retrieval.OverFetch,
		Weights:       cfg.Retrieval.Weights,
		Workers:       cfg.Retrieval.Workers,
		RerankTimeout: cfg.Retrieval.RerankTimeout,
		StageTimeout:  cfg.Retrieval.StageTimeout,
	})
}
