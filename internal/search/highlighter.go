package search

import (
	"strings"
	"unicode/utf8"
)

// Highlight returns a window of about maxLen bytes of content around the first
// occurrence of any query term, with "..." marking cut ends. When no term occurs
// the window starts at the beginning.
func Highlight(content, query string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	lower := strings.ToLower(content)
	start := 0
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if i := strings.Index(lower, term); i >= 0 {
			start = i - maxLen/4
			break
		}
	}
	if start < 0 {
		start = 0
	}
	if start+maxLen > len(content) {
		start = len(content) - maxLen
	}
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	end := start + maxLen
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}
	out := content[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(content) {
		out += "..."
	}
	return out
}
