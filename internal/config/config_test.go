package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "mistralai/Mistral-7B-Instruct-v0.2", cfg.LLM.ModelName)
	assert.Equal(t, "together", cfg.LLM.Provider)
	assert.Equal(t, 0.0, cfg.LLM.Temperature)
	assert.Equal(t, 512, cfg.LLM.MaxTokens)
	assert.False(t, cfg.LLM.Streaming)
	assert.Equal(t, 800, cfg.Document.MaxChunkSize)
	assert.Equal(t, 50, cfg.Document.ChunkOverlap)
	assert.Equal(t, "lehninger_biochem", cfg.VectorStore.CollectionName)
	assert.Equal(t, 4, cfg.Retrieval.NResults)
	assert.Contains(t, cfg.ReasoningStrategies, "CoT")

	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Document.MaxChunkSize)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
document:
  max_chunk_size: 1200
  data_directory: corpus
retrieval:
  n_results: 8
llm:
  model_name: meta-llama/Llama-3-8b-chat-hf
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Overlaid values.
	assert.Equal(t, 1200, cfg.Document.MaxChunkSize)
	assert.Equal(t, "corpus", cfg.Document.DataDirectory)
	assert.Equal(t, 8, cfg.Retrieval.NResults)
	assert.Equal(t, "meta-llama/Llama-3-8b-chat-hf", cfg.LLM.ModelName)

	// Untouched defaults survive the merge.
	assert.Equal(t, 50, cfg.Document.ChunkOverlap)
	assert.Equal(t, "together", cfg.LLM.Provider)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("document: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TOGETHER_API_KEY", "tk-test")
	t.Setenv("BIORAG_DATA_DIR", "/srv/corpus")
	t.Setenv("BIORAG_LOG_LEVEL", "debug")
	t.Setenv("BIORAG_N_RESULTS", "6")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "tk-test", cfg.LLM.APIKey)
	assert.Equal(t, "/srv/corpus", cfg.Document.DataDirectory)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 6, cfg.Retrieval.NResults)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RAGConfig)
	}{
		{"zero chunk size", func(c *RAGConfig) { c.Document.MaxChunkSize = 0 }},
		{"negative overlap", func(c *RAGConfig) { c.Document.ChunkOverlap = -1 }},
		{"zero n_results", func(c *RAGConfig) { c.Retrieval.NResults = 0 }},
		{"temperature out of range", func(c *RAGConfig) { c.LLM.Temperature = 3.5 }},
		{"zero max tokens", func(c *RAGConfig) { c.LLM.MaxTokens = 0 }},
		{"empty collection", func(c *RAGConfig) { c.VectorStore.CollectionName = "" }},
		{"bad log level", func(c *RAGConfig) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCollectionPath(t *testing.T) {
	cfg := NewConfig()
	cfg.VectorStore.PersistDirectory = "/var/lib/biorag"
	assert.Equal(t, filepath.Join("/var/lib/biorag", "lehninger_biochem"), cfg.CollectionPath())
}
