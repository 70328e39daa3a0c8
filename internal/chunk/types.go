// Package chunk splits markdown documents into size-bounded,
// metadata-tagged chunks for embedding and retrieval.
package chunk

// Metadata keys written by the splitter and the enricher.
const (
	MetaSourceFile    = "source_file"
	MetaMainTitle     = "Main Title"
	MetaSection       = "Section"
	MetaChapterNumber = "chapter_number"
	MetaChapterTitle  = "chapter_title"
	MetaSectionRoot   = "section_root"
)

// Chunk is a bounded span of document text plus descriptive metadata.
// It is the unit of retrieval: created once during ingestion, immutable
// thereafter.
type Chunk struct {
	Content  string
	Metadata map[string]string
}

// SourceFile returns the chunk's source file name, or "" if untagged.
func (c *Chunk) SourceFile() string {
	return c.Metadata[MetaSourceFile]
}

// SizeStats summarizes chunk content lengths in characters.
type SizeStats struct {
	Min   int
	Max   int
	Avg   int // integer floor of the mean
	Total int
}

// Summary aggregates a chunk sequence for ingestion reporting.
type Summary struct {
	TotalChunks   int
	FileCounts    map[string]int
	SectionCounts map[string]int
	Sizes         SizeStats
}
