// Package pipeline orchestrates the retrieval-augmented query flow:
// similarity search, prompt assembly, generation, and answer cleanup.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/biorag/biorag/internal/chunk"
	"github.com/biorag/biorag/internal/config"
	"github.com/biorag/biorag/internal/errors"
	"github.com/biorag/biorag/internal/llm"
	"github.com/biorag/biorag/internal/prompt"
	"github.com/biorag/biorag/internal/store"
)

// QueryResult is the outcome of one query. Transient, never persisted.
type QueryResult struct {
	Query           string
	Result          string
	SourceDocuments []chunk.Chunk
}

// Pipeline answers questions against an ingested collection.
type Pipeline struct {
	nResults   int
	collection *store.Collection
	generator  llm.Generator
	prompt     *prompt.Prompt
}

// New builds a pipeline. Construction is strict: an empty collection or a
// missing prompt template aborts here rather than degrading at query time.
// (A missing API key already failed in llm.NewClient.)
func New(cfg *config.RAGConfig, collection *store.Collection, generator llm.Generator,
	templates prompt.Templates, templateName string) (*Pipeline, error) {

	count, err := collection.Count(context.Background())
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.DataError(errors.ErrCodeEmptyCollection,
			"the vector index contains no documents", nil).
			WithSuggestion("run 'biorag ingest' to index the document directory")
	}

	p, err := prompt.Build(templateName, templates, cfg.ReasoningStrategies)
	if err != nil {
		return nil, err
	}

	slog.Info("pipeline ready",
		"documents", count,
		"template", templateName,
		"model", generator.ModelName(),
		"n_results", cfg.Retrieval.NResults)

	return &Pipeline{
		nResults:   cfg.Retrieval.NResults,
		collection: collection,
		generator:  generator,
		prompt:     p,
	}, nil
}

// Query answers a question, optionally restricted by exact-match metadata
// filters. It never returns an error: any retrieval or generation failure
// becomes a QueryResult carrying a human-readable error message with no
// sources, so an interactive caller's loop survives transient failures.
func (p *Pipeline) Query(ctx context.Context, question string, filters map[string]string) QueryResult {
	slog.Debug("query", "question", question, "filters", filters)

	docs, err := p.collection.Search(ctx, question, p.nResults, filters)
	if err != nil {
		slog.Error("retrieval failed", "error", err)
		return degraded(question, err)
	}

	// Zero matches is valid: the model answers from its own knowledge or
	// says it cannot.
	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Content
	}
	filled := p.prompt.Fill(strings.Join(contents, "\n\n"), question)

	raw, err := p.generator.Generate(ctx, filled)
	if err != nil {
		slog.Error("generation failed", "error", err)
		return degraded(question, err)
	}

	return QueryResult{
		Query:           question,
		Result:          cleanAnswer(raw),
		SourceDocuments: docs,
	}
}

func degraded(question string, err error) QueryResult {
	msg := err.Error()
	if ragErr, ok := err.(*errors.RAGError); ok {
		msg = ragErr.Message
	}
	return QueryResult{
		Query:           question,
		Result:          fmt.Sprintf("An error occurred: %s", msg),
		SourceDocuments: []chunk.Chunk{},
	}
}
