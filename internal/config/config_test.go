package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(DefaultFileName)
	require.NoError(t, err)
	assert.Equal(t, Default().Retrieval.TopK, cfg.Retrieval.TopK)
}

func TestLoad_MissingExplicitFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, riskerr.ErrCodeConfigNotFound, riskerr.GetCode(err))
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "riskagent.yaml")
	content := `
paths:
  index_dir: /srv/indexes
retrieval:
  top_k: 8
  weights:
    dense: 0.7
    lexical: 0.3
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/indexes", cfg.Paths.IndexDir)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, 0.7, cfg.Retrieval.Weights.Dense)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Retrieval.OverFetch, cfg.Retrieval.OverFetch)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "riskagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  top_k: 8\n"), 0o644))

	t.Setenv("RISKAGENT_TOP_K", "12")
	t.Setenv("RISKAGENT_INDEX_DIR", "/env/indexes")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Retrieval.TopK)
	assert.Equal(t, "/env/indexes", cfg.Paths.IndexDir)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "riskagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval: ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, riskerr.ErrCodeConfigInvalid, riskerr.GetCode(err))
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty index dir", func(c *Config) { c.Paths.IndexDir = "" }},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cloud" }},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"over-fetch too high", func(c *Config) { c.Retrieval.OverFetch = 9 }},
		{"negative weight", func(c *Config) { c.Retrieval.Weights.Dense = -1 }},
		{"zero workers", func(c *Config) { c.Retrieval.Workers = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"groundedness weights off", func(c *Config) { c.Ground.Weights.Coverage = 0.9 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, riskerr.ErrCodeConfigInvalid, riskerr.GetCode(err))
		})
	}
}
