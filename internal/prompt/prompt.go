// Package prompt assembles the system instruction sent to the language
// model from configurable template fields plus retrieved context.
package prompt

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/biorag/biorag/configs"
	"github.com/biorag/biorag/internal/errors"
)

// TemplateConfig is one named prompt template. All fields are optional;
// absent fields contribute nothing to the assembled prompt.
type TemplateConfig struct {
	Role              string   `yaml:"role"`
	Instruction       string   `yaml:"instruction"`
	Goal              string   `yaml:"goal"`
	OutputConstraints []string `yaml:"output_constraints"`
	StyleOrTone       []string `yaml:"style_or_tone"`

	// ReasoningStrategy names an entry in the reasoning-strategies map.
	ReasoningStrategy string `yaml:"reasoning_strategy"`
}

// Templates maps template names to their configuration.
type Templates map[string]TemplateConfig

// DefaultTemplates parses the embedded prompt configuration.
func DefaultTemplates() (Templates, error) {
	return parseTemplates([]byte(configs.DefaultPromptConfig))
}

// LoadTemplates reads templates from a YAML file. An empty path falls back
// to the embedded defaults.
func LoadTemplates(path string) (Templates, error) {
	if path == "" {
		return DefaultTemplates()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read prompt config %s: %v", path, err), err)
	}
	return parseTemplates(data)
}

func parseTemplates(data []byte) (Templates, error) {
	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse prompt config: %v", err), err)
	}
	return t, nil
}

// Prompt is an assembled system section with late-bound context and
// question placeholders.
type Prompt struct {
	System string
}

// Build assembles the named template into a Prompt. The template's
// reasoning-strategy key is resolved against strategies; a missing or empty
// resolution is logged and skipped. A missing template is fatal.
func Build(name string, templates Templates, strategies map[string]string) (*Prompt, error) {
	tpl, ok := templates[name]
	if !ok {
		return nil, errors.ConfigError(errors.ErrCodeTemplateNotFound,
			fmt.Sprintf("prompt template %q not found", name), nil).
			WithSuggestion("check the template name against prompt_config.yaml")
	}

	var parts []string
	if s := strings.TrimSpace(tpl.Role); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(tpl.Instruction); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(tpl.Goal); s != "" {
		parts = append(parts, "Goal: "+s)
	}
	if section := bulletSection("Output Constraints:", tpl.OutputConstraints); section != "" {
		parts = append(parts, section)
	}
	if section := bulletSection("Style/Tone:", tpl.StyleOrTone); section != "" {
		parts = append(parts, section)
	}

	if key := strings.TrimSpace(tpl.ReasoningStrategy); key != "" {
		if text := strings.TrimSpace(strategies[key]); text != "" {
			parts = append(parts, "Reasoning Strategy:\n"+text)
		} else {
			slog.Warn("reasoning strategy has no content, skipping",
				"strategy", key, "template", name)
		}
	}

	return &Prompt{System: strings.Join(parts, "\n\n")}, nil
}

// bulletSection renders a header followed by indented bullet items.
// Empty items are dropped; an empty list yields no section.
func bulletSection(header string, items []string) string {
	var lines []string
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			lines = append(lines, "  - "+s)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return header + "\n" + strings.Join(lines, "\n")
}

// Fill produces the final prompt for one query.
func (p *Prompt) Fill(context, question string) string {
	return fmt.Sprintf("%s\n\nContext:\n%s\n\nQuestion: %s", p.System, context, question)
}
