// Package enrich attaches chapter-level metadata to chunks based on their
// source file.
package enrich

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/biorag/biorag/configs"
	"github.com/biorag/biorag/internal/chunk"
	"github.com/biorag/biorag/internal/errors"
)

// NotAvailable is the sentinel written for files with no chapter mapping.
const NotAvailable = "N/A"

// ChapterMetadata describes where a source file sits in the textbook.
type ChapterMetadata struct {
	ChapterTitle  string `yaml:"chapter_title"`
	ChapterNumber string `yaml:"chapter_number"`
	SectionRoot   string `yaml:"section_root"`
}

// ChapterMap maps source file names to their chapter metadata.
type ChapterMap map[string]ChapterMetadata

// DefaultChapterMap parses the embedded chapter map.
func DefaultChapterMap() (ChapterMap, error) {
	return parseChapterMap([]byte(configs.DefaultChapterMap))
}

// LoadChapterMap reads a chapter map from a YAML file. An empty path falls
// back to the embedded default.
func LoadChapterMap(path string) (ChapterMap, error) {
	if path == "" {
		return DefaultChapterMap()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read chapter map %s: %v", path, err), err)
	}
	return parseChapterMap(data)
}

func parseChapterMap(data []byte) (ChapterMap, error) {
	var m ChapterMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse chapter map: %v", err), err)
	}
	return m, nil
}

// Enrich merges chapter metadata into each chunk by source_file lookup.
// Unmapped files get the "N/A" sentinel for both chapter fields and are
// logged, never rejected. Chunks are modified in place; order is preserved
// and the operation is idempotent.
func Enrich(chunks []chunk.Chunk, chapterMap ChapterMap) []chunk.Chunk {
	unmapped := map[string]bool{}

	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = map[string]string{}
		}

		file := chunks[i].Metadata[chunk.MetaSourceFile]
		meta, ok := chapterMap[file]
		if !ok {
			chunks[i].Metadata[chunk.MetaChapterNumber] = NotAvailable
			chunks[i].Metadata[chunk.MetaChapterTitle] = NotAvailable
			if file != "" && !unmapped[file] {
				unmapped[file] = true
				slog.Warn("no chapter mapping for file", "file", file)
			}
			continue
		}

		chunks[i].Metadata[chunk.MetaChapterNumber] = meta.ChapterNumber
		chunks[i].Metadata[chunk.MetaChapterTitle] = meta.ChapterTitle
		if meta.SectionRoot != "" {
			chunks[i].Metadata[chunk.MetaSectionRoot] = meta.SectionRoot
		}
	}

	return chunks
}
