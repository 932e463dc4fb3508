package ollama

import (
	"fmt"
	"strings"
)

// Preferred chat models, best first. Small instruction-tuned models rank
// ahead of larger ones.
var preferredModels = []string{
	"llama3.2:3b",
	"llama3.2:1b",
	"llama3.2",
	"llama3.1:8b",
	"llama3.1",
	"mistral:7b",
	"mistral",
	"qwen2.5:7b",
	"qwen2.5",
	"dolphin-llama3",
	"dolphin3",
}

// SelectModel picks a model from the installed list: exact preferred-name
// match first, then substring match against the preference order, then the
// first installed model. ok is false only when the list is empty.
func SelectModel(installed []ModelInfo) (string, bool) {
	if len(installed) == 0 {
		return "", false
	}
	for _, want := range preferredModels {
		for _, m := range installed {
			if m.Name == want {
				return m.Name, true
			}
		}
	}
	for _, want := range preferredModels {
		for _, m := range installed {
			if strings.Contains(m.Name, want) {
				return m.Name, true
			}
		}
	}
	return installed[0].Name, true
}

// FindModel resolves a user-supplied name against the installed list:
// exact match first, then substring match, both case-insensitive.
func FindModel(installed []ModelInfo, query string) (string, bool) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return "", false
	}
	for _, m := range installed {
		if strings.ToLower(m.Name) == query {
			return m.Name, true
		}
	}
	for _, m := range installed {
		if strings.Contains(strings.ToLower(m.Name), query) {
			return m.Name, true
		}
	}
	return "", false
}

// FormatModels renders the installed list one model per line, marking the
// active model and the recommended pick.
func FormatModels(installed []ModelInfo, active string) string {
	if len(installed) == 0 {
		return "no models installed"
	}
	recommended, _ := SelectModel(installed)

	var b strings.Builder
	for _, m := range installed {
		marker := "  "
		if m.Name == active {
			marker = "* "
		}
		fmt.Fprintf(&b, "%s%s (%.1f GB)", marker, m.Name, float64(m.Size)/(1024*1024*1024))
		if m.Name == recommended && m.Name != active {
			b.WriteString(" (recommended)")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
