package burstbuffer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadConfigPrefersPlainFileName(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "burst_buffer.conf", "Granularity = 1G\nPrioBoostUse = 20000\n")
	writeConfig(t, dir, "burst_buffer_generic.conf", "Granularity = 8\n")

	orig := searchPaths
	searchPaths = []string{dir}
	defer func() { searchPaths = orig }()

	cfg, err := LoadConfig("generic", log.NewNopLogger())
	require.NoError(t, err)
	assert.EqualValues(t, 1, cfg.Granularity)
	assert.EqualValues(t, NiceOffset, cfg.PrioBoostUse, "clamped to the nice ceiling")
}

func TestLoadConfigFallsBackToTypedFileName(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "burst_buffer_cray.conf", "GetSysState = /usr/sbin/dwstat\n")

	orig := searchPaths
	searchPaths = []string{dir}
	defer func() { searchPaths = orig }()

	cfg, err := LoadConfig("cray", log.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "/usr/sbin/dwstat", cfg.GetSysState)
}

func TestLoadConfigMissingFileErrors(t *testing.T) {
	orig := searchPaths
	searchPaths = []string{t.TempDir()}
	defer func() { searchPaths = orig }()

	_, err := LoadConfig("cray", log.NewNopLogger())
	assert.Error(t, err)
}

func TestLoadConfigParsesGresList(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "burst_buffer.conf", "Gres = nodes,scratch:4\n")

	orig := searchPaths
	searchPaths = []string{dir}
	defer func() { searchPaths = orig }()

	cfg, err := LoadConfig("generic", log.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, cfg.GRES, 2)
	assert.Equal(t, GRES{Name: "nodes", AvailCnt: 1}, cfg.GRES[0])
	assert.Equal(t, GRES{Name: "scratch", AvailCnt: 4}, cfg.GRES[1])
}

func TestLoadConfigZeroGranularityCorrectedToOne(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "burst_buffer.conf", "Granularity = 0\n")

	orig := searchPaths
	searchPaths = []string{dir}
	defer func() { searchPaths = orig }()

	cfg, err := LoadConfig("generic", log.NewNopLogger())
	require.NoError(t, err)
	assert.EqualValues(t, 1, cfg.Granularity)
}

func TestClearConfigFiniWipesScriptPaths(t *testing.T) {
	cfg := &Config{Granularity: 4, GetSysState: "/bin/dwstat", StartStageIn: "/bin/stagein"}

	ClearConfig(cfg, false)
	assert.Equal(t, "/bin/dwstat", cfg.GetSysState)
	assert.EqualValues(t, 1, cfg.Granularity)

	cfg2 := &Config{Granularity: 4, GetSysState: "/bin/dwstat"}
	ClearConfig(cfg2, true)
	assert.Empty(t, cfg2.GetSysState)
}
