package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAgentConfig(), cfg)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodeagentd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("thread_count: 20\nlisten_address: \":9100\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.ThreadCount)
	assert.Equal(t, ":9100", cfg.ListenAddress)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/no/such/file.yaml")
	assert.Error(t, err)
}
