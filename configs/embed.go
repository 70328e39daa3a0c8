// Package configs provides embedded default configuration for biorag.
//
// The YAML files in this directory are embedded at build time so that a
// bare binary works out of the box: prompt templates and chapter metadata
// load from these defaults whenever no override file is supplied on the
// command line.
//
// Configuration hierarchy (see internal/config Load()):
//  1. Hardcoded defaults (internal/config NewConfig())
//  2. YAML config file (config.yaml)
//  3. Environment variables (TOGETHER_API_KEY, BIORAG_*)
package configs

import _ "embed"

// ConfigTemplate is the annotated example configuration written by
// `biorag config init` for users to edit.
//
//go:embed config.example.yaml
var ConfigTemplate string

// DefaultPromptConfig holds the built-in prompt template definitions,
// keyed by template name.
//
//go:embed prompt_config.yaml
var DefaultPromptConfig string

// DefaultChapterMap holds the built-in chapter metadata map for the
// Lehninger corpus, keyed by source file name.
//
//go:embed chapters.yaml
var DefaultChapterMap string
