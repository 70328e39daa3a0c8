package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStrategies = map[string]string{
	"CoT": "Think step by step before answering.",
}

func TestBuildFullTemplate(t *testing.T) {
	templates := Templates{
		"full": {
			Role:              "You are a biochemistry tutor.",
			Instruction:       "Answer from the context only.",
			Goal:              "Help the student understand.",
			OutputConstraints: []string{"No fabricated citations.", "Stay on topic."},
			StyleOrTone:       []string{"Clear and pedagogical."},
			ReasoningStrategy: "CoT",
		},
	}

	p, err := Build("full", templates, testStrategies)
	require.NoError(t, err)

	expected := strings.Join([]string{
		"You are a biochemistry tutor.",
		"Answer from the context only.",
		"Goal: Help the student understand.",
		"Output Constraints:\n  - No fabricated citations.\n  - Stay on topic.",
		"Style/Tone:\n  - Clear and pedagogical.",
		"Reasoning Strategy:\nThink step by step before answering.",
	}, "\n\n")
	assert.Equal(t, expected, p.System)
}

func TestBuildOmitsAbsentParts(t *testing.T) {
	templates := Templates{
		"minimal": {Role: "You are a reference assistant."},
	}

	p, err := Build("minimal", templates, testStrategies)
	require.NoError(t, err)

	assert.Equal(t, "You are a reference assistant.", p.System)
	assert.NotContains(t, p.System, "Goal:")
	assert.NotContains(t, p.System, "\n\n\n")
}

func TestBuildUnknownStrategySkipped(t *testing.T) {
	templates := Templates{
		"t": {Role: "Role.", ReasoningStrategy: "does-not-exist"},
	}

	p, err := Build("t", templates, testStrategies)
	require.NoError(t, err)
	assert.Equal(t, "Role.", p.System)
}

func TestBuildTemplateNotFound(t *testing.T) {
	_, err := Build("missing", Templates{}, testStrategies)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_104")
}

func TestFill(t *testing.T) {
	p := &Prompt{System: "System section."}

	filled := p.Fill("Some retrieved context.", "What is glycolysis?")
	assert.Equal(t,
		"System section.\n\nContext:\nSome retrieved context.\n\nQuestion: What is glycolysis?",
		filled)
}

func TestFillEmptyContext(t *testing.T) {
	p := &Prompt{System: "System."}

	filled := p.Fill("", "Question?")
	assert.Contains(t, filled, "Context:\n\n\nQuestion: Question?")
}

func TestDefaultTemplates(t *testing.T) {
	templates, err := DefaultTemplates()
	require.NoError(t, err)

	tpl, ok := templates["lehninger_rag_prompt_cfg"]
	require.True(t, ok)
	assert.NotEmpty(t, tpl.Role)
	assert.NotEmpty(t, tpl.OutputConstraints)
	assert.Equal(t, "CoT", tpl.ReasoningStrategy)
}
