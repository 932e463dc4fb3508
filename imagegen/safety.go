package imagegen

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

var forbiddenTerms = []string{"nsfw", "nude", "explicit"}

// CheckPrompt enforces the content pre-check: at least 3 characters after
// trimming and no forbidden term anywhere in the text.
func CheckPrompt(text string) error {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < 3 {
		return Rejected("prompt too short")
	}
	lower := strings.ToLower(trimmed)
	for _, term := range forbiddenTerms {
		if strings.Contains(lower, term) {
			return Rejected(fmt.Sprintf("forbidden term %q", term))
		}
	}
	return nil
}
