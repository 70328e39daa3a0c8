package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorag/biorag/internal/chunk"
	"github.com/biorag/biorag/internal/config"
	"github.com/biorag/biorag/internal/embed"
	"github.com/biorag/biorag/internal/prompt"
	"github.com/biorag/biorag/internal/store"
)

// stubGenerator returns a canned answer or error and records prompts.
type stubGenerator struct {
	answer  string
	err     error
	prompts []string
}

func (s *stubGenerator) Generate(ctx context.Context, p string) (string, error) {
	s.prompts = append(s.prompts, p)
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func (s *stubGenerator) ModelName() string { return "stub" }
func (s *stubGenerator) Close() error      { return nil }

var testTemplates = prompt.Templates{
	"test_template": {
		Role:        "You are a biochemistry tutor.",
		Instruction: "Answer from the context.",
	},
}

func newTestCollection(t *testing.T, chunks []chunk.Chunk) *store.Collection {
	t.Helper()

	c, err := store.Open(store.Options{
		PersistDirectory: t.TempDir(),
		CollectionName:   "test",
	}, embed.NewStaticEmbedder())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	if len(chunks) > 0 {
		require.NoError(t, c.Insert(context.Background(), chunks))
	}
	return c
}

func ingestedChunks() []chunk.Chunk {
	return []chunk.Chunk{
		{
			Content:  "Glycolysis converts glucose to pyruvate in the cytoplasm.",
			Metadata: map[string]string{chunk.MetaSourceFile: "g.md", chunk.MetaChapterNumber: "14"},
		},
		{
			Content:  "Transaminases transfer amino groups between amino acids.",
			Metadata: map[string]string{chunk.MetaSourceFile: "a.md", chunk.MetaChapterNumber: "22"},
		},
	}
}

func newTestPipeline(t *testing.T, gen *stubGenerator) *Pipeline {
	t.Helper()

	cfg := config.NewConfig()
	p, err := New(cfg, newTestCollection(t, ingestedChunks()), gen, testTemplates, "test_template")
	require.NoError(t, err)
	return p
}

func TestNewFailsOnEmptyCollection(t *testing.T) {
	cfg := config.NewConfig()
	empty := newTestCollection(t, nil)

	_, err := New(cfg, empty, &stubGenerator{}, testTemplates, "test_template")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_203")
}

func TestNewFailsOnMissingTemplate(t *testing.T) {
	cfg := config.NewConfig()
	coll := newTestCollection(t, ingestedChunks())

	_, err := New(cfg, coll, &stubGenerator{}, testTemplates, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_104")
}

func TestQueryReturnsAnswerAndSources(t *testing.T) {
	gen := &stubGenerator{answer: "Pyruvate, in the cytoplasm."}
	p := newTestPipeline(t, gen)

	result := p.Query(context.Background(), "Where does glycolysis occur?", nil)

	assert.Equal(t, "Where does glycolysis occur?", result.Query)
	assert.Equal(t, "Pyruvate, in the cytoplasm.", result.Result)
	assert.NotEmpty(t, result.SourceDocuments)

	// The filled prompt carries retrieved context and the question.
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Context:")
	assert.Contains(t, gen.prompts[0], "Question: Where does glycolysis occur?")
	assert.Contains(t, gen.prompts[0], "Glycolysis converts glucose")
}

func TestQueryNoFilterMatchStillAnswers(t *testing.T) {
	gen := &stubGenerator{answer: "I cannot find that in the provided material."}
	p := newTestPipeline(t, gen)

	result := p.Query(context.Background(), "Anything?",
		map[string]string{chunk.MetaChapterNumber: "99"})

	assert.Empty(t, result.SourceDocuments)
	assert.NotEmpty(t, result.Result)

	// The model still gets called, with empty context.
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Context:\n\n")
}

func TestQueryFilterRestrictsSources(t *testing.T) {
	gen := &stubGenerator{answer: "ok"}
	p := newTestPipeline(t, gen)

	result := p.Query(context.Background(), "amino groups",
		map[string]string{chunk.MetaChapterNumber: "22"})

	require.NotEmpty(t, result.SourceDocuments)
	for _, d := range result.SourceDocuments {
		assert.Equal(t, "22", d.Metadata[chunk.MetaChapterNumber])
	}
}

func TestQueryDegradesOnGenerationFailure(t *testing.T) {
	gen := &stubGenerator{err: fmt.Errorf("connection refused")}
	p := newTestPipeline(t, gen)

	result := p.Query(context.Background(), "q", nil)

	assert.True(t, strings.HasPrefix(result.Result, "An error occurred:"))
	assert.Empty(t, result.SourceDocuments)
}

func TestCleanAnswer(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "double answer prefix with trailing questions",
			raw:  "Answer: Answer: Glycolysis occurs in the cytoplasm.\n\nRelated Questions:\n1. What is gluconeogenesis?",
			want: "Glycolysis occurs in the cytoplasm.",
		},
		{
			name: "single answer prefix",
			raw:  "Answer: ATP stores energy.",
			want: "ATP stores energy.",
		},
		{
			name: "the answer is prefix",
			raw:  "The answer is: hexokinase.",
			want: "hexokinase.",
		},
		{
			name: "trailing sources section",
			raw:  "Enzymes are catalysts.\n\nSources:\n- page 190",
			want: "Enzymes are catalysts.",
		},
		{
			name: "right answer scaffold before answer label",
			raw:  "Right Answer: stale text Answer: NADH carries electrons.",
			want: "NADH carries electrons.",
		},
		{
			name: "explanation block stripped",
			raw:  "Explanation of the Solution: long winded reasoning\nRelated Questions: more",
			want: "",
		},
		{
			name: "clean answer untouched",
			raw:  "Pyruvate is the end product of glycolysis.",
			want: "Pyruvate is the end product of glycolysis.",
		},
		{
			name: "case insensitive",
			raw:  "ANSWER: carbon fixation.",
			want: "carbon fixation.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanAnswer(tt.raw))
		})
	}
}
