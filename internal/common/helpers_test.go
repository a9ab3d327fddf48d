package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUUIDFromString(t *testing.T) {
	expected := "d808af89-684c-6f3f-a474-8d22b566dd12"

	got, err := GetUUIDFromString([]string{"foo", "1234", "bar567"})
	require.NoError(t, err)
	assert.Equal(t, expected, got)
}

type dummyConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

func TestMakeConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_address: \":9999\"\n"), 0o644))

	cfg, err := MakeConfig[dummyConfig](path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddress)

	_, err = MakeConfig[dummyConfig]("")
	require.Error(t, err)
}

func TestGetFreePort(t *testing.T) {
	port, l, err := GetFreePort()
	require.NoError(t, err)
	defer l.Close()
	assert.Greater(t, port, 0)
}

func TestComputeExternalURL(t *testing.T) {
	u, err := ComputeExternalURL("", "localhost:9010")
	require.NoError(t, err)
	assert.Contains(t, u.String(), "9010")

	_, err = ComputeExternalURL("\"http://bad\"", "localhost:9010")
	require.Error(t, err)
}
