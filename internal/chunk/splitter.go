package chunk

import (
	"log/slog"
	"regexp"
	"strings"
)

// Default splitting parameters, tuned for textbook prose.
const (
	DefaultMaxChunkSize = 800
	DefaultChunkOverlap = 50
)

// Matches level-1 and level-2 headers only. Deeper headers stay inside
// their enclosing section.
var headerPattern = regexp.MustCompile(`^(#{1,2})\s+(.+)$`)

// Splitter turns raw markdown into an ordered sequence of chunks.
//
// Splitting happens in two passes: a structural pass on # and ## headers
// that tags each section with its active "Main Title" and "Section", then
// a secondary pass that cuts oversized sections down to maxChunkSize
// characters with chunkOverlap characters repeated across each boundary.
type Splitter struct {
	maxChunkSize int
	chunkOverlap int
}

// NewSplitter creates a splitter. Non-positive arguments fall back to the
// defaults. An overlap at or above the chunk size is clamped to
// maxChunkSize-1 with a warning, so splitting always makes progress.
func NewSplitter(maxChunkSize, chunkOverlap int) *Splitter {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= maxChunkSize {
		slog.Warn("chunk_overlap must be smaller than max_chunk_size, clamping",
			"chunk_overlap", chunkOverlap,
			"max_chunk_size", maxChunkSize,
			"clamped_to", maxChunkSize-1)
		chunkOverlap = maxChunkSize - 1
	}
	return &Splitter{maxChunkSize: maxChunkSize, chunkOverlap: chunkOverlap}
}

// SplitDocument splits markdown text into chunks. Every chunk carries the
// header context active at its position; header lines stay verbatim in the
// content. If filename is non-empty it is attached as source_file. Empty or
// whitespace-only input yields no chunks.
func (s *Splitter) SplitDocument(markdownText, filename string) []Chunk {
	if strings.TrimSpace(markdownText) == "" {
		return nil
	}

	var chunks []Chunk
	for _, sec := range parseSections(markdownText) {
		trimmed := strings.TrimSpace(sec.content)
		if trimmed == "" {
			continue
		}
		// A bare header with no body is not worth indexing.
		if !strings.Contains(trimmed, "\n") && headerPattern.MatchString(trimmed) {
			continue
		}
		content := strings.TrimRight(sec.content, "\n")

		for _, part := range s.splitOversized(content) {
			meta := map[string]string{}
			if sec.mainTitle != "" {
				meta[MetaMainTitle] = sec.mainTitle
			}
			if sec.section != "" {
				meta[MetaSection] = sec.section
			}
			if filename != "" {
				meta[MetaSourceFile] = filename
			}
			chunks = append(chunks, Chunk{Content: part, Metadata: meta})
		}
	}

	return chunks
}

// section is one structural block: a header line plus everything up to the
// next level-1 or level-2 header.
type section struct {
	mainTitle string
	section   string
	content   string
}

// parseSections walks the document line by line, starting a new section at
// every # or ## header. Text before the first header becomes a section with
// no header metadata.
func parseSections(text string) []section {
	lines := strings.Split(text, "\n")

	var sections []section
	var cur section
	var body strings.Builder
	started := false

	flush := func() {
		if started {
			cur.content = body.String()
			sections = append(sections, cur)
			body.Reset()
		}
	}

	var mainTitle, sub string
	for _, line := range lines {
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			flush()
			title := strings.TrimSpace(m[2])
			if len(m[1]) == 1 {
				mainTitle = title
				sub = ""
			} else {
				sub = title
			}
			cur = section{mainTitle: mainTitle, section: sub}
			started = true
		} else if !started {
			cur = section{}
			started = true
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return sections
}

// splitOversized enforces the size bound on a structural section. Content
// within the bound passes through untouched. Oversized content is cut into
// windows of at most maxChunkSize characters, each window after the first
// starting exactly chunkOverlap characters before the previous cut so
// boundary text is never lost. Cut points prefer, in order: paragraph
// break, line break, sentence end, word boundary, hard character cut.
func (s *Splitter) splitOversized(content string) []string {
	runes := []rune(content)
	if len(runes) <= s.maxChunkSize {
		return []string{content}
	}

	var parts []string
	start := 0
	for start < len(runes) {
		end := start + s.maxChunkSize
		if end >= len(runes) {
			parts = append(parts, string(runes[start:]))
			break
		}

		cut := findCut(runes, start, end)
		parts = append(parts, string(runes[start:cut]))

		next := cut - s.chunkOverlap
		if next <= start {
			next = cut
		}
		start = next
	}

	return parts
}

// findCut scans backwards from end for the best boundary in (min, end],
// where min is the window midpoint. Restricting the search to the latter
// half keeps every non-final chunk at least half the maximum size, so a
// separator right after a short header line never produces a sliver chunk.
// Returns the index just past the separator, or end for a hard cut.
func findCut(runes []rune, start, end int) int {
	min := start + (end-start)/2

	// Paragraph break: "\n\n"
	for i := end - 1; i > min; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	// Line break
	for i := end - 1; i > min; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	// Sentence end: ". "
	for i := end - 1; i > min; i-- {
		if runes[i] == ' ' && runes[i-1] == '.' {
			return i + 1
		}
	}
	// Word boundary
	for i := end - 1; i > min; i-- {
		if runes[i] == ' ' {
			return i + 1
		}
	}
	// Hard character cut
	return end
}
