package summarizer

import (
	"regexp"
	"strings"
)

var (
	reasoningBlock = regexp.MustCompile(`(?is)<think>.*?</think>`)
	reasoningTag   = regexp.MustCompile(`(?i)</?think>`)
)

// StripReasoning removes the <think>...</think> chain-of-thought blocks some
// models emit, any unpaired think tag left behind, and surrounding
// whitespace. Removal repeats until nothing matches, so applying it twice
// gives the same result as applying it once.
func StripReasoning(raw string) string {
	s := raw
	for {
		next := reasoningBlock.ReplaceAllString(s, "")
		if next != s {
			s = next
			continue
		}
		next = reasoningTag.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}
