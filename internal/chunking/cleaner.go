// Package chunking cleans extracted legislative text and splits it into token-bounded chunks.
package chunking

import (
	"regexp"
	"strings"
)

var (
	hyphenBreakRe = regexp.MustCompile(`(\w+)-\s*\n\s*(\w+)`)
	// "HB 1234 12" style running headers, e.g. "FIRST REGULAR SESSION HB 100 & 200 3".
	pageHeaderRe = regexp.MustCompile(`(?m)^[A-Z]{2,}\s+(?:[A-Z]{2,}\s+)*(?:HBs?|SBs?)\s+[\d\s&]+\s+\d+\s*$`)
	lineNumberRe = regexp.MustCompile(`(?m)^\s*\d+\s+`)
	spaceRunRe   = regexp.MustCompile(` +`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
)

// Clean removes scanning and layout artifacts from text extracted from a bill PDF.
// It never fails; the result may be empty.
func Clean(raw string) string {
	text := stripControl(raw)
	text = hyphenBreakRe.ReplaceAllString(text, "$1$2")
	text = pageHeaderRe.ReplaceAllString(text, "")
	text = lineNumberRe.ReplaceAllString(text, "")
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// stripControl drops NUL and other C0 control characters. Carriage returns and
// form feeds become newlines; tabs and newlines are kept.
func stripControl(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r' || r == '\f':
			return '\n'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}
