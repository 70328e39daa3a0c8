// Package config loads and validates the biorag configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults (NewConfig)
//  2. YAML config file (config.yaml)
//  3. Environment variables (TOGETHER_API_KEY, BIORAG_*)
//
// The resulting RAGConfig is constructed once at process start and passed
// by reference to every component constructor. There is no global lookup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/biorag/biorag/internal/errors"
)

// LLMConfig configures the generative language model.
type LLMConfig struct {
	ModelName   string  `yaml:"model_name"`
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Streaming   bool    `yaml:"streaming"`
	BaseURL     string  `yaml:"base_url"`
}

// DocumentConfig configures document processing.
type DocumentConfig struct {
	DataDirectory string `yaml:"data_directory"`
	MaxChunkSize  int    `yaml:"max_chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
}

// VectorStoreConfig configures the persisted vector collection and the
// embedding service used to populate it.
type VectorStoreConfig struct {
	PersistDirectory     string `yaml:"persist_directory"`
	CollectionName       string `yaml:"collection_name"`
	EmbeddingModelName   string `yaml:"embedding_model_name"`
	EmbeddingModelDevice string `yaml:"embedding_model_device"`
	EmbeddingHost        string `yaml:"embedding_host"`
}

// RetrievalConfig configures the document retriever.
type RetrievalConfig struct {
	NResults int `yaml:"n_results"`
}

// RAGConfig is the complete pipeline configuration.
type RAGConfig struct {
	LLM         LLMConfig         `yaml:"llm"`
	Document    DocumentConfig    `yaml:"document"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	LogLevel    string            `yaml:"log_level"`

	// ReasoningStrategies maps strategy names to their prompt text.
	ReasoningStrategies map[string]string `yaml:"reasoning_strategies"`
}

// Default external endpoints.
const (
	DefaultTogetherBaseURL = "https://api.together.xyz/v1"
	DefaultEmbeddingHost   = "http://localhost:11434"
)

// NewConfig creates a new RAGConfig with sensible defaults.
func NewConfig() *RAGConfig {
	return &RAGConfig{
		LLM: LLMConfig{
			ModelName:   "mistralai/Mistral-7B-Instruct-v0.2",
			Provider:    "together",
			Temperature: 0.0,
			MaxTokens:   512,
			Streaming:   false,
			BaseURL:     DefaultTogetherBaseURL,
		},
		Document: DocumentConfig{
			DataDirectory: "data",
			MaxChunkSize:  800,
			ChunkOverlap:  50,
		},
		VectorStore: VectorStoreConfig{
			PersistDirectory:   "./biochem_db",
			CollectionName:     "lehninger_biochem",
			EmbeddingModelName: "nomic-embed-text",
			EmbeddingHost:      DefaultEmbeddingHost,
		},
		Retrieval: RetrievalConfig{
			NResults: 4,
		},
		LogLevel: "info",
		ReasoningStrategies: map[string]string{
			"CoT": "Think step by step. Break the question into the biochemical concepts it " +
				"involves, reason through each using the provided context, and only then state " +
				"the final answer.",
			"ReAct": "Alternate between reasoning about what information is needed and checking " +
				"whether the provided context supplies it. Conclude with the final answer once " +
				"the reasoning chain is complete.",
		},
	}
}

// Load loads configuration from the given file path.
// An empty path or a missing file falls back to defaults; a present but
// malformed file is a configuration error. A .env file in the working
// directory is loaded first so TOGETHER_API_KEY can live outside the YAML.
func Load(path string) (*RAGConfig, error) {
	// Missing .env is fine; an exported variable works the same.
	_ = godotenv.Load()

	cfg := NewConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeConfigNotFound, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *RAGConfig) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(errors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s: %v", path, err), err)
	}

	var parsed RAGConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s: %v", path, err), err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *RAGConfig) mergeWith(other *RAGConfig) {
	// LLM
	if other.LLM.ModelName != "" {
		c.LLM.ModelName = other.LLM.ModelName
	}
	if other.LLM.Provider != "" {
		c.LLM.Provider = other.LLM.Provider
	}
	if other.LLM.APIKey != "" {
		c.LLM.APIKey = other.LLM.APIKey
	}
	if other.LLM.Temperature != 0 {
		c.LLM.Temperature = other.LLM.Temperature
	}
	if other.LLM.MaxTokens != 0 {
		c.LLM.MaxTokens = other.LLM.MaxTokens
	}
	if other.LLM.Streaming {
		c.LLM.Streaming = other.LLM.Streaming
	}
	if other.LLM.BaseURL != "" {
		c.LLM.BaseURL = other.LLM.BaseURL
	}

	// Document
	if other.Document.DataDirectory != "" {
		c.Document.DataDirectory = other.Document.DataDirectory
	}
	if other.Document.MaxChunkSize != 0 {
		c.Document.MaxChunkSize = other.Document.MaxChunkSize
	}
	if other.Document.ChunkOverlap != 0 {
		c.Document.ChunkOverlap = other.Document.ChunkOverlap
	}

	// Vector store
	if other.VectorStore.PersistDirectory != "" {
		c.VectorStore.PersistDirectory = other.VectorStore.PersistDirectory
	}
	if other.VectorStore.CollectionName != "" {
		c.VectorStore.CollectionName = other.VectorStore.CollectionName
	}
	if other.VectorStore.EmbeddingModelName != "" {
		c.VectorStore.EmbeddingModelName = other.VectorStore.EmbeddingModelName
	}
	if other.VectorStore.EmbeddingModelDevice != "" {
		c.VectorStore.EmbeddingModelDevice = other.VectorStore.EmbeddingModelDevice
	}
	if other.VectorStore.EmbeddingHost != "" {
		c.VectorStore.EmbeddingHost = other.VectorStore.EmbeddingHost
	}

	// Retrieval
	if other.Retrieval.NResults != 0 {
		c.Retrieval.NResults = other.Retrieval.NResults
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}

	if len(other.ReasoningStrategies) > 0 {
		c.ReasoningStrategies = other.ReasoningStrategies
	}
}

// applyEnvOverrides applies environment variable overrides.
func (c *RAGConfig) applyEnvOverrides() {
	if v := os.Getenv("TOGETHER_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("BIORAG_DATA_DIR"); v != "" {
		c.Document.DataDirectory = v
	}
	if v := os.Getenv("BIORAG_PERSIST_DIR"); v != "" {
		c.VectorStore.PersistDirectory = v
	}
	if v := os.Getenv("BIORAG_OLLAMA_HOST"); v != "" {
		c.VectorStore.EmbeddingHost = v
	}
	if v := os.Getenv("BIORAG_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("BIORAG_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("BIORAG_N_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.NResults = n
		}
	}
}

// Validate validates the configuration and returns an error if invalid.
// The missing-API-key check is deferred to LLM client construction so that
// offline operations (ingest with a local embedder) still work.
func (c *RAGConfig) Validate() error {
	if c.Document.MaxChunkSize <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("document.max_chunk_size must be positive, got %d", c.Document.MaxChunkSize), nil)
	}
	if c.Document.ChunkOverlap < 0 {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("document.chunk_overlap must be non-negative, got %d", c.Document.ChunkOverlap), nil)
	}
	if c.Retrieval.NResults <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("retrieval.n_results must be positive, got %d", c.Retrieval.NResults), nil)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("llm.temperature must be between 0 and 2, got %g", c.LLM.Temperature), nil)
	}
	if c.LLM.MaxTokens <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens), nil)
	}
	if c.VectorStore.CollectionName == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "vector_store.collection_name must not be empty", nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel), nil)
	}

	return nil
}

// CollectionPath returns the on-disk directory of the configured collection.
func (c *RAGConfig) CollectionPath() string {
	return filepath.Join(c.VectorStore.PersistDirectory, c.VectorStore.CollectionName)
}

// WriteYAML writes the configuration to a YAML file.
func (c *RAGConfig) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
