package character

import (
	"fmt"
	"os"
	"strings"

	"github.com/dimanchick22/alicebot/internal/markdown"
)

type personaFrontmatter struct {
	Name        string   `yaml:"name"`
	Age         int      `yaml:"age"`
	Personality string   `yaml:"personality"`
	Traits      string   `yaml:"traits"`
	Interests   []string `yaml:"interests"`
	Moods       []string `yaml:"moods"`
	Emojis      []string `yaml:"emojis"`
}

// Load reads a persona from a markdown file: YAML frontmatter for the
// fields, body appended to the system prompt. Omitted fields keep the
// built-in Alice values, so a file can override just a name or a mood list.
func Load(path string) (Persona, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read persona %s: %w", path, err)
	}

	fm, body, ok := markdown.ParseFrontmatter[personaFrontmatter](string(raw))
	if !ok {
		return Persona{}, fmt.Errorf("persona %s: missing or invalid frontmatter", path)
	}

	p := Alice()
	if fm.Name != "" {
		p.Name = fm.Name
	}
	if fm.Age > 0 {
		p.Age = fm.Age
	}
	if fm.Personality != "" {
		p.Personality = fm.Personality
	}
	if fm.Traits != "" {
		p.Traits = fm.Traits
	}
	if len(fm.Interests) > 0 {
		p.Interests = fm.Interests
	}
	if len(fm.Moods) > 0 {
		p.Moods = fm.Moods
	}
	if len(fm.Emojis) > 0 {
		p.Emojis = fm.Emojis
	}
	p.Extra = strings.TrimSpace(body)
	return p, nil
}
