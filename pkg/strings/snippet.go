package strings

import (
	"strings"
)

// DefaultSnippetLen is the length used when printing response bodies that
// accompany failed requests.
const DefaultSnippetLen = 200

// minSnippetLen leaves room for one character plus the ellipsis.
const minSnippetLen = 4

// Snippet collapses all whitespace in s to single spaces and shortens the
// result to at most maxLen runes, ending it with "..." when shortened.
// maxLen values below 4 are raised to 4.
func Snippet(s string, maxLen int) string {
	if maxLen < minSnippetLen {
		maxLen = minSnippetLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
