package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInitCmd_WritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cmd := newConfigInitCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{path})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "llm:")
	assert.Contains(t, string(data), "vector_store:")
	assert.Contains(t, string(data), "reasoning_strategies:")
}

func TestConfigInitCmd_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: {}\n"), 0o644))

	cmd := newConfigInitCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// The original file is untouched.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "llm: {}\n", string(data))
}

func TestConfigInitCmd_ForceOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	cmd := newConfigInitCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{path, "--force"})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "llm:")
}

func TestConfigShowCmd_RedactsAPIKey(t *testing.T) {
	t.Setenv("TOGETHER_API_KEY", "secret-token")

	cmd := newConfigShowCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.NotContains(t, output, "secret-token")
	assert.Contains(t, output, "(set)")
	assert.Contains(t, output, "collection_name: lehninger_biochem")
}
