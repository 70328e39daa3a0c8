// Package ingest runs the offline indexing path: split, enrich, embed,
// and store every markdown file in the configured data directory.
package ingest

import (
	"context"
	"log/slog"

	"github.com/biorag/biorag/internal/chunk"
	"github.com/biorag/biorag/internal/config"
	"github.com/biorag/biorag/internal/embed"
	"github.com/biorag/biorag/internal/enrich"
	"github.com/biorag/biorag/internal/errors"
	"github.com/biorag/biorag/internal/store"
)

// DocumentStats reports what was read and split.
type DocumentStats struct {
	TotalChunks     int
	FilesProcessed  int
	SectionsFound   int
	TotalCharacters int
}

// EmbeddingStats reports the embedding model used.
type EmbeddingStats struct {
	Model     string
	Dimension int
	Device    string
	Count     int
}

// VectorStoreStats reports the resulting collection state.
type VectorStoreStats struct {
	Path          string
	Collection    string
	DocumentCount int
}

// ConfigStats echoes the splitting configuration for the report.
type ConfigStats struct {
	MaxChunkSize  int
	ChunkOverlap  int
	DataDirectory string
}

// Summary is the ingestion report.
type Summary struct {
	Status      string
	Documents   DocumentStats
	Embeddings  EmbeddingStats
	VectorStore VectorStoreStats
	Config      ConfigStats
}

// Run ingests the configured data directory into the configured collection.
// With clearExisting the collection is wiped first; callers are responsible
// for confirming that with the user beforehand. A missing directory or a
// directory yielding zero chunks is an error.
func Run(ctx context.Context, cfg *config.RAGConfig, embedder embed.Embedder,
	chapterMap enrich.ChapterMap, clearExisting bool) (*Summary, error) {

	splitter := chunk.NewSplitter(cfg.Document.MaxChunkSize, cfg.Document.ChunkOverlap)

	slog.Info("processing documents", "dir", cfg.Document.DataDirectory)
	chunks, err := splitter.ProcessDirectory(cfg.Document.DataDirectory)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, errors.DataError(errors.ErrCodeNoDocuments,
			"no markdown content found in "+cfg.Document.DataDirectory, nil).
			WithSuggestion("add .md files to the data directory or adjust document.data_directory")
	}

	slog.Info("enriching chunks with chapter metadata", "chunks", len(chunks))
	chunks = enrich.Enrich(chunks, chapterMap)

	collection, err := store.Open(store.Options{
		PersistDirectory: cfg.VectorStore.PersistDirectory,
		CollectionName:   cfg.VectorStore.CollectionName,
		Reset:            clearExisting,
	}, embedder)
	if err != nil {
		return nil, err
	}
	defer func() { _ = collection.Close() }()

	slog.Info("embedding and indexing", "chunks", len(chunks), "model", embedder.ModelName())
	if err := collection.Insert(ctx, chunks); err != nil {
		return nil, err
	}

	count, err := collection.Count(ctx)
	if err != nil {
		return nil, err
	}

	stats := chunk.Summarize(chunks)
	summary := &Summary{
		Status: "success",
		Documents: DocumentStats{
			TotalChunks:     stats.TotalChunks,
			FilesProcessed:  len(stats.FileCounts),
			SectionsFound:   len(stats.SectionCounts),
			TotalCharacters: stats.Sizes.Total,
		},
		Embeddings: EmbeddingStats{
			Model:     embedder.ModelName(),
			Dimension: embedder.Dimensions(),
			Device:    cfg.VectorStore.EmbeddingModelDevice,
			Count:     len(chunks),
		},
		VectorStore: VectorStoreStats{
			Path:          collection.Path(),
			Collection:    cfg.VectorStore.CollectionName,
			DocumentCount: count,
		},
		Config: ConfigStats{
			MaxChunkSize:  cfg.Document.MaxChunkSize,
			ChunkOverlap:  cfg.Document.ChunkOverlap,
			DataDirectory: cfg.Document.DataDirectory,
		},
	}

	slog.Info("ingest complete",
		"chunks", summary.Documents.TotalChunks,
		"files", summary.Documents.FilesProcessed,
		"documents", summary.VectorStore.DocumentCount)

	return summary, nil
}
