package cmd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shohbitgupta/contract-risk-agent/internal/config"
)

func TestConfigCmd_InitShowPath(t *testing.T) {
	// Given: an empty working directory
	chdir(t, t.TempDir())

	// When: initializing the config file
	out, err := runRoot(t, "config", "init")

	// Then: the default file is written
	require.NoError(t, err)
	assert.Contains(t, out, config.DefaultFileName)
	_, statErr := os.Stat(config.DefaultFileName)
	require.NoError(t, statErr)

	// When: initializing again without --force
	_, err = runRoot(t, "config", "init")

	// Then: the existing file is not clobbered
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// When: showing the effective configuration
	out, err = runRoot(t, "config", "show")

	// Then: the merged YAML includes the retrieval defaults
	require.NoError(t, err)
	assert.Contains(t, out, "index_dir: indexes")
	assert.Contains(t, out, "top_k: 5")

	// When: printing the config path
	out, err = runRoot(t, "config", "path")

	// Then: it names the file in use
	require.NoError(t, err)
	assert.Contains(t, out, config.DefaultFileName)
}

func TestConfigCmd_ShowAppliesEnvOverrides(t *testing.T) {
	// Given: an env override for the index directory
	chdir(t, t.TempDir())
	t.Setenv("RISKAGENT_INDEX_DIR", "/var/lib/riskagent/indexes")

	// When: showing the effective configuration
	out, err := runRoot(t, "config", "show")

	// Then: the env value wins over the default
	require.NoError(t, err)
	assert.Contains(t, out, "index_dir: /var/lib/riskagent/indexes")
}
