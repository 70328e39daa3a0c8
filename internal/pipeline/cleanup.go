package pipeline

import (
	"regexp"
	"strings"
)

// cleanupRules strip scaffolding text the model sometimes echoes: leaked
// answer labels, explanation blocks, and trailing question/source sections.
// Applied in order, case-insensitively, spanning newlines. Go's regexp has
// no lookahead, so each "strip up to the next label or end" rule is a pair:
// a lazy match that re-emits the label, then a catch-all to end of string.
var cleanupRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?is)Right Answer:\s*.*?(Answer:)`), "$1"},
	{regexp.MustCompile(`(?is)Right Answer:\s*.*`), ""},
	{regexp.MustCompile(`(?is)Explanation of the Solution:\s*.*?(Related Questions:)`), "$1"},
	{regexp.MustCompile(`(?is)Explanation of the Solution:\s*.*`), ""},
	{regexp.MustCompile(`(?is)Related Questions:\s*.*`), ""},
	{regexp.MustCompile(`(?is)Sources:\s*.*`), ""},
	{regexp.MustCompile(`(?is)^\s*Answer:\s*Answer:\s*`), ""},
	{regexp.MustCompile(`(?is)^\s*Answer:\s*`), ""},
	{regexp.MustCompile(`(?is)^\s*The answer is:\s*`), ""},
}

// cleanAnswer applies the cleanup rules to a raw model answer.
func cleanAnswer(raw string) string {
	cleaned := raw
	for _, rule := range cleanupRules {
		cleaned = rule.re.ReplaceAllString(cleaned, rule.repl)
	}
	return strings.TrimSpace(cleaned)
}
