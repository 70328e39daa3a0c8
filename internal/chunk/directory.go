package chunk

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/biorag/biorag/internal/errors"
)

// ProcessDirectory splits every markdown file in dirPath (non-recursive,
// filename order). Files that are empty, unreadable, or not valid UTF-8 are
// logged and skipped; a missing directory is an error.
func (s *Splitter) ProcessDirectory(dirPath string) ([]Chunk, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		return nil, errors.DataError(errors.ErrCodeDirectoryNotFound,
			fmt.Sprintf("data directory not found: %s", dirPath), err).
			WithSuggestion("check document.data_directory in your config")
	}
	if !info.IsDir() {
		return nil, errors.DataError(errors.ErrCodeDirectoryNotFound,
			fmt.Sprintf("not a directory: %s", dirPath), nil)
	}

	paths, err := filepath.Glob(filepath.Join(dirPath, "*.md"))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err)
	}
	sort.Strings(paths)

	var chunks []Chunk
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable file", "path", path, "error", err)
			continue
		}
		if !utf8.Valid(data) {
			slog.Warn("skipping file with invalid UTF-8", "path", path)
			continue
		}
		if strings.TrimSpace(string(data)) == "" {
			slog.Warn("skipping empty file", "path", path)
			continue
		}

		fileChunks := s.SplitDocument(string(data), filepath.Base(path))
		slog.Debug("split file", "path", path, "chunks", len(fileChunks))
		chunks = append(chunks, fileChunks...)
	}

	return chunks, nil
}

// Summarize aggregates chunk counts and size statistics. An empty input
// yields a zeroed summary.
func Summarize(chunks []Chunk) Summary {
	summary := Summary{
		TotalChunks:   len(chunks),
		FileCounts:    make(map[string]int),
		SectionCounts: make(map[string]int),
	}
	if len(chunks) == 0 {
		return summary
	}

	summary.Sizes.Min = utf8.RuneCountInString(chunks[0].Content)
	for _, c := range chunks {
		file := c.Metadata[MetaSourceFile]
		if file == "" {
			file = "(unknown)"
		}
		summary.FileCounts[file]++

		sec := c.Metadata[MetaSection]
		if sec == "" {
			sec = c.Metadata[MetaMainTitle]
		}
		if sec == "" {
			sec = "(none)"
		}
		summary.SectionCounts[sec]++

		n := utf8.RuneCountInString(c.Content)
		summary.Sizes.Total += n
		if n < summary.Sizes.Min {
			summary.Sizes.Min = n
		}
		if n > summary.Sizes.Max {
			summary.Sizes.Max = n
		}
	}
	summary.Sizes.Avg = summary.Sizes.Total / len(chunks)

	return summary
}
