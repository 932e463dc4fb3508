package character

import "strings"

const imagePromptMarker = "[IMAGE_PROMPT:"

// ExtractImagePrompt splits a reply into its visible text and the
// [IMAGE_PROMPT: ...] block the persona instructions ask the model to emit.
// The last block wins; a block without a closing bracket is left in place.
func ExtractImagePrompt(reply string) (string, string) {
	idx := strings.LastIndex(reply, imagePromptMarker)
	if idx < 0 {
		return reply, ""
	}
	rest := reply[idx+len(imagePromptMarker):]
	end := strings.Index(rest, "]")
	if end < 0 {
		return reply, ""
	}
	prompt := strings.TrimSpace(rest[:end])
	visible := strings.TrimSpace(reply[:idx] + rest[end+1:])
	return visible, prompt
}
