package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/biorag/biorag/internal/chunk"
	"github.com/biorag/biorag/internal/enrich"
	"github.com/biorag/biorag/internal/llm"
	"github.com/biorag/biorag/internal/pipeline"
	"github.com/biorag/biorag/internal/prompt"
	"github.com/biorag/biorag/internal/store"
)

const defaultTemplate = "lehninger_rag_prompt_cfg"

// newQueryCmd creates the query command.
func newQueryCmd() *cobra.Command {
	var (
		template    string
		chapter     string
		rawFilters  []string
		nResults    int
		offline     bool
		showSources bool
	)

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question from the indexed textbook",
		Long: `Retrieves the passages most similar to the question, assembles a
prompt from the configured template, and asks the language model.

Retrieval can be restricted with exact-match metadata filters, for example
--chapter 22 or --filter 'Main Title=Biosynthesis of Amino Acids'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if nResults > 0 {
				cfg.Retrieval.NResults = nResults
			}

			filters, err := parseFilters(chapter, rawFilters)
			if err != nil {
				return err
			}

			templates, err := prompt.LoadTemplates(promptFile)
			if err != nil {
				return err
			}

			generator, err := llm.NewClient(cfg.LLM)
			if err != nil {
				return err
			}
			defer func() { _ = generator.Close() }()

			embedder, err := newEmbedder(cmd, cfg, offline)
			if err != nil {
				return err
			}
			defer func() { _ = embedder.Close() }()

			collection, err := store.Open(store.Options{
				PersistDirectory: cfg.VectorStore.PersistDirectory,
				CollectionName:   cfg.VectorStore.CollectionName,
			}, embedder)
			if err != nil {
				return err
			}
			defer func() { _ = collection.Close() }()

			p, err := pipeline.New(cfg, collection, generator, templates, template)
			if err != nil {
				return err
			}

			result := p.Query(cmd.Context(), args[0], filters)
			printResult(cmd, result, showSources)
			return nil
		},
	}

	cmd.Flags().StringVar(&template, "template", defaultTemplate, "Prompt template name")
	cmd.Flags().StringVar(&chapter, "chapter", "", "Restrict retrieval to a chapter number")
	cmd.Flags().StringArrayVar(&rawFilters, "filter", nil, "Metadata filter as key=value (repeatable)")
	cmd.Flags().IntVarP(&nResults, "n-results", "n", 0, "Number of passages to retrieve")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (no embedding service needed)")
	cmd.Flags().BoolVar(&showSources, "sources", true, "Print the retrieved source passages")

	return cmd
}

// parseFilters merges the --chapter shorthand with explicit --filter pairs.
func parseFilters(chapter string, raw []string) (map[string]string, error) {
	if chapter == "" && len(raw) == 0 {
		return nil, nil
	}

	filters := make(map[string]string, len(raw)+1)
	if chapter != "" {
		filters[chunk.MetaChapterNumber] = chapter
	}
	for _, pair := range raw {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid filter %q: expected key=value", pair)
		}
		filters[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return filters, nil
}

func printResult(cmd *cobra.Command, result pipeline.QueryResult, showSources bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.Result)

	if !showSources || len(result.SourceDocuments) == 0 {
		return
	}

	fmt.Fprintf(out, "\nSources:\n")
	for i, doc := range result.SourceDocuments {
		fmt.Fprintf(out, "  %d. %s\n", i+1, describeSource(doc))
	}
}

// describeSource renders one retrieved chunk's provenance line.
func describeSource(doc chunk.Chunk) string {
	var parts []string

	if file := doc.SourceFile(); file != "" {
		parts = append(parts, file)
	}
	if ch := doc.Metadata[chunk.MetaChapterNumber]; ch != "" && ch != enrich.NotAvailable {
		parts = append(parts, "chapter "+ch)
	}
	if section := doc.Metadata[chunk.MetaSection]; section != "" {
		parts = append(parts, section)
	} else if title := doc.Metadata[chunk.MetaMainTitle]; title != "" {
		parts = append(parts, title)
	}

	if len(parts) == 0 {
		return "(unknown source)"
	}
	return strings.Join(parts, ", ")
}
