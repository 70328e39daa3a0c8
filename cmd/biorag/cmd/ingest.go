package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/biorag/biorag/internal/config"
	"github.com/biorag/biorag/internal/embed"
	"github.com/biorag/biorag/internal/enrich"
	"github.com/biorag/biorag/internal/ingest"
)

// newIngestCmd creates the ingest command.
func newIngestCmd() *cobra.Command {
	var (
		clear      bool
		force      bool
		offline    bool
		dataDir    string
		chapterMap string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Split, embed, and index the markdown corpus",
		Long: `Reads every *.md file from the data directory, splits it into
size-bounded chunks with chapter metadata, embeds the chunks, and stores
them in the persisted vector collection.

With --clear the existing collection is deleted and rebuilt from scratch.
Clearing asks for confirmation on a terminal unless --force is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dataDir != "" {
				cfg.Document.DataDirectory = dataDir
			}

			if clear && !force {
				ok, err := confirmClear(cmd)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted. Existing documents were kept.")
					return nil
				}
			}

			chapters, err := enrich.LoadChapterMap(chapterMap)
			if err != nil {
				return err
			}

			embedder, err := newEmbedder(cmd, cfg, offline)
			if err != nil {
				return err
			}
			defer func() { _ = embedder.Close() }()

			summary, err := ingest.Run(cmd.Context(), cfg, embedder, chapters, clear)
			if err != nil {
				return err
			}

			printSummary(cmd, summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Delete and rebuild the existing collection")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the interactive confirmation for --clear")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (no embedding service needed)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Override document.data_directory")
	cmd.Flags().StringVar(&chapterMap, "chapter-map", "", "Path to chapters.yaml (embedded default if absent)")

	return cmd
}

// confirmClear asks before a destructive rebuild. A non-interactive stdin
// declines: destroying an index from a pipe requires --force.
func confirmClear(cmd *cobra.Command) (bool, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok &&
		!isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Refusing to clear without a terminal; use --force to override.")
		return false, nil
	}

	fmt.Fprint(cmd.OutOrStdout(), "Clear existing documents and rebuild the database? (y/n): ")
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// newEmbedder builds the configured embedder, cached for repeated content.
func newEmbedder(cmd *cobra.Command, cfg *config.RAGConfig, offline bool) (embed.Embedder, error) {
	if offline {
		return embed.NewCachedEmbedder(embed.NewStaticEmbedder(), 0), nil
	}

	inner, err := embed.NewOllamaEmbedder(cmd.Context(), embed.OllamaConfig{
		Host:  cfg.VectorStore.EmbeddingHost,
		Model: cfg.VectorStore.EmbeddingModelName,
	})
	if err != nil {
		return nil, err
	}
	return embed.NewCachedEmbedder(inner, 0), nil
}

func printSummary(cmd *cobra.Command, s *ingest.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ingest %s\n\n", s.Status)
	fmt.Fprintf(out, "Documents:\n")
	fmt.Fprintf(out, "  files processed:  %d\n", s.Documents.FilesProcessed)
	fmt.Fprintf(out, "  sections found:   %d\n", s.Documents.SectionsFound)
	fmt.Fprintf(out, "  total chunks:     %d\n", s.Documents.TotalChunks)
	fmt.Fprintf(out, "  total characters: %d\n", s.Documents.TotalCharacters)
	fmt.Fprintf(out, "Embeddings:\n")
	fmt.Fprintf(out, "  model:     %s\n", s.Embeddings.Model)
	fmt.Fprintf(out, "  dimension: %d\n", s.Embeddings.Dimension)
	fmt.Fprintf(out, "  count:     %d\n", s.Embeddings.Count)
	fmt.Fprintf(out, "Vector store:\n")
	fmt.Fprintf(out, "  path:       %s\n", s.VectorStore.Path)
	fmt.Fprintf(out, "  collection: %s\n", s.VectorStore.Collection)
	fmt.Fprintf(out, "  documents:  %d\n", s.VectorStore.DocumentCount)
	fmt.Fprintf(out, "Configuration:\n")
	fmt.Fprintf(out, "  max_chunk_size: %d\n", s.Config.MaxChunkSize)
	fmt.Fprintf(out, "  chunk_overlap:  %d\n", s.Config.ChunkOverlap)
	fmt.Fprintf(out, "  data_directory: %s\n", s.Config.DataDirectory)
}
