// Package markdown splits the YAML-frontmatter documents the bot loads
// persona definitions from.
package markdown

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFrontmatter decodes the leading YAML block into T and returns the
// remaining body. ok is false when the block is missing or not valid YAML;
// the body is usable either way.
func ParseFrontmatter[T any](contents string) (T, string, bool) {
	var out T
	raw, body, found := SplitFrontmatter(contents)
	if !found {
		return out, contents, false
	}
	if err := yaml.Unmarshal([]byte(raw), &out); err != nil {
		var zero T
		return zero, body, false
	}
	return out, body, true
}

// SplitFrontmatter cuts a document at its frontmatter fences: the raw YAML
// sits between a leading "---" line and the next one, the body after it.
// found is false when either fence is missing.
func SplitFrontmatter(contents string) (raw, body string, found bool) {
	lines := strings.Split(strings.ReplaceAll(contents, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", contents, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", contents, false
}
