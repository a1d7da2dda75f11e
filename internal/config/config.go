// Package config loads and validates the engine configuration from YAML,
// with RISKAGENT_* environment variables taking precedence over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
	"github.com/shohbitgupta/contract-risk-agent/internal/ground"
	"github.com/shohbitgupta/contract-risk-agent/internal/retrieval"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "riskagent.yaml"

// Config is the complete engine configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths" json:"paths"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval" json:"retrieval"`
	Ground    ground.Config   `yaml:"groundedness" json:"groundedness"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// PathsConfig locates on-disk state.
type PathsConfig struct {
	// IndexDir is the registry base directory; one subdirectory per
	// jurisdiction.
	IndexDir string `yaml:"index_dir" json:"index_dir"`
}

// EmbeddingConfig configures the embedding layer.
type EmbeddingConfig struct {
	// Provider selects the embedder: "static" is the built-in
	// deterministic hash embedder.
	Provider string `yaml:"provider" json:"provider"`

	// CacheSize is the LRU capacity for query embeddings.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// Timeout bounds a single embedding call.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RetrievalConfig configures the hybrid pipeline.
type RetrievalConfig struct {
	TopK          int               `yaml:"top_k" json:"top_k"`
	OverFetch     int               `yaml:"over_fetch" json:"over_fetch"`
	Weights       retrieval.Weights `yaml:"weights" json:"weights"`
	Workers       int               `yaml:"workers" json:"workers"`
	RerankTimeout time.Duration     `yaml:"rerank_timeout" json:"rerank_timeout"`
	StageTimeout  time.Duration     `yaml:"stage_timeout" json:"stage_timeout"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"` // debug, info, warn, error
	File  string `yaml:"file" json:"file"`   // empty for stderr only
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Paths:     PathsConfig{IndexDir: "indexes"},
		Embedding: EmbeddingConfig{Provider: "static", CacheSize: 1000, Timeout: 30 * time.Second},
		Retrieval: RetrievalConfig{
			TopK:          retrieval.DefaultTopK,
			OverFetch:     retrieval.DefaultOverFetch,
			Weights:       retrieval.DefaultWeights(),
			Workers:       retrieval.DefaultWorkers,
			RerankTimeout: retrieval.DefaultRerankTimeout,
			StageTimeout:  retrieval.DefaultStageTimeout,
		},
		Ground:  ground.DefaultConfig(),
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the config file at path (missing file falls back to defaults
// when path is the default name), applies environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, riskerr.New(riskerr.ErrCodeConfigInvalid,
				fmt.Sprintf("parse config %s", path), err)
		}
	case os.IsNotExist(err) && path == DefaultFileName:
		// Default name and no file: run on defaults.
	case os.IsNotExist(err):
		return nil, riskerr.New(riskerr.ErrCodeConfigNotFound,
			fmt.Sprintf("config file %s not found", path), err)
	default:
		return nil, riskerr.New(riskerr.ErrCodeConfigNotFound,
			fmt.Sprintf("read config %s", path), err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies RISKAGENT_* environment variables, the highest
// precedence configuration source.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RISKAGENT_INDEX_DIR"); v != "" {
		c.Paths.IndexDir = v
	}
	if v := os.Getenv("RISKAGENT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RISKAGENT_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retrieval.TopK = n
		}
	}
	if v := os.Getenv("RISKAGENT_DENSE_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Retrieval.Weights.Dense = f
		}
	}
	if v := os.Getenv("RISKAGENT_LEXICAL_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Retrieval.Weights.Lexical = f
		}
	}
	if v := os.Getenv("RISKAGENT_ANCHOR_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Ground.AnchorThreshold = f
		}
	}
	if v := os.Getenv("RISKAGENT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retrieval.Workers = n
		}
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	if c.Paths.IndexDir == "" {
		return riskerr.New(riskerr.ErrCodeConfigInvalid, "paths.index_dir must not be empty", nil)
	}

	provider := strings.ToLower(c.Embedding.Provider)
	if provider != "static" {
		return riskerr.New(riskerr.ErrCodeConfigInvalid,
			fmt.Sprintf("embedding.provider must be 'static', got %q", c.Embedding.Provider), nil)
	}
	if c.Embedding.CacheSize <= 0 {
		return riskerr.New(riskerr.ErrCodeConfigInvalid,
			fmt.Sprintf("embedding.cache_size must be positive, got %d", c.Embedding.CacheSize), nil)
	}

	if c.Retrieval.TopK <= 0 {
		return riskerr.New(riskerr.ErrCodeConfigInvalid,
			fmt.Sprintf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK), nil)
	}
	if c.Retrieval.OverFetch < retrieval.MinOverFetch || c.Retrieval.OverFetch > retrieval.MaxOverFetch {
		return riskerr.New(riskerr.ErrCodeConfigInvalid,
			fmt.Sprintf("retrieval.over_fetch must be in [%d,%d], got %d",
				retrieval.MinOverFetch, retrieval.MaxOverFetch, c.Retrieval.OverFetch), nil)
	}
	if !c.Retrieval.Weights.Valid() {
		return riskerr.New(riskerr.ErrCodeConfigInvalid, "retrieval.weights must be non-negative with a positive sum", nil)
	}
	if c.Retrieval.Workers <= 0 {
		return riskerr.New(riskerr.ErrCodeConfigInvalid,
			fmt.Sprintf("retrieval.workers must be positive, got %d", c.Retrieval.Workers), nil)
	}

	if err := c.Ground.Validate(); err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return riskerr.New(riskerr.ErrCodeConfigInvalid,
			fmt.Sprintf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level), nil)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
