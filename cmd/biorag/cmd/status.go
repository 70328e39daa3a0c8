package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/biorag/biorag/internal/embed"
	"github.com/biorag/biorag/internal/store"
)

// newStatusCmd creates the status command.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the indexed collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Configuration:\n")
			fmt.Fprintf(out, "  data directory:  %s\n", cfg.Document.DataDirectory)
			fmt.Fprintf(out, "  collection:      %s\n", cfg.VectorStore.CollectionName)
			fmt.Fprintf(out, "  embedding model: %s\n", cfg.VectorStore.EmbeddingModelName)
			fmt.Fprintf(out, "  llm model:       %s\n", cfg.LLM.ModelName)
			fmt.Fprintf(out, "  n_results:       %d\n", cfg.Retrieval.NResults)

			path := cfg.CollectionPath()
			if _, err := os.Stat(path); err != nil {
				fmt.Fprintf(out, "\nCollection: not created (%s)\n", path)
				fmt.Fprintf(out, "Run 'biorag ingest' to index the document directory.\n")
				return nil
			}

			// Counting only reads SQLite, so the static embedder avoids a
			// dependency on the embedding service being up.
			collection, err := store.Open(store.Options{
				PersistDirectory: cfg.VectorStore.PersistDirectory,
				CollectionName:   cfg.VectorStore.CollectionName,
			}, embed.NewStaticEmbedder())
			if err != nil {
				return err
			}
			defer func() { _ = collection.Close() }()

			count, err := collection.Count(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\nCollection:\n")
			fmt.Fprintf(out, "  path:      %s\n", collection.Path())
			fmt.Fprintf(out, "  documents: %d\n", count)
			if count == 0 {
				fmt.Fprintf(out, "\nThe collection is empty. Run 'biorag ingest' to index documents.\n")
			}
			return nil
		},
	}
}
