package chunking

import (
	"regexp"
	"strings"
)

// DocType is the detected kind of document text.
type DocType string

const (
	// DocTypeLegislative is statute-formatted bill text with section markers.
	DocTypeLegislative DocType = "legislative_text"
	// DocTypeSummary is narrative text such as a bill summary.
	DocTypeSummary DocType = "summary"
)

// Defaults sized for text-embedding-3 models.
const (
	DefaultTargetTokens  = 800
	DefaultOverlapTokens = 100
)

// oversizeFactor lets a single section exceed the target by 20% before it is emitted alone.
const oversizeFactor = 1.2

var (
	sectionMarkerRe   = regexp.MustCompile(`(?:Section\s+[A-Z\d]+\.|(?:\d{3}\.\d{3}\.\s+1\.))`)
	sectionBoundaryRe = regexp.MustCompile(`(?m)(?:Section\s+[A-Z\d]+\.|(?:^|\n)(?:\d{3}\.\d{3}\.\s+1\.))`)
)

// Chunker splits cleaned text into chunks of roughly TargetTokens tokens.
// It is pure: identical input always yields identical output.
type Chunker struct {
	targetTokens  int
	overlapTokens int
	counter       TokenCounter
}

// NewChunker creates a chunker. Non-positive sizes fall back to the defaults;
// a nil counter counts words.
func NewChunker(targetTokens, overlapTokens int, counter TokenCounter) *Chunker {
	if targetTokens <= 0 {
		targetTokens = DefaultTargetTokens
	}
	if overlapTokens < 0 {
		overlapTokens = DefaultOverlapTokens
	}
	if counter == nil {
		counter = WordCounter{}
	}
	return &Chunker{targetTokens: targetTokens, overlapTokens: overlapTokens, counter: counter}
}

// CountTokens counts tokens with the chunker's counter.
func (c *Chunker) CountTokens(text string) int {
	return c.counter.Count(text)
}

// Chunk classifies text and splits it. Legislative text is packed by whole
// sections; summaries that exceed the target are split by sentences with a
// trailing token overlap. Blank text yields no chunks.
func (c *Chunker) Chunk(text string) ([]string, DocType) {
	if strings.TrimSpace(text) == "" {
		return nil, DocTypeSummary
	}
	if sectionMarkerRe.MatchString(text) {
		return c.chunkBySections(text), DocTypeLegislative
	}
	if c.counter.Count(text) <= c.targetTokens {
		return []string{text}, DocTypeSummary
	}
	return c.chunkBySentences(text), DocTypeSummary
}

func (c *Chunker) chunkBySections(text string) []string {
	bounds := sectionBoundaryRe.FindAllStringIndex(text, -1)
	if len(bounds) == 0 {
		return []string{text}
	}

	sections := make([]string, 0, len(bounds)+1)
	if bounds[0][0] > 0 {
		sections = append(sections, text[:bounds[0][0]])
	}
	for i, b := range bounds {
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1][0]
		}
		sections = append(sections, text[b[0]:end])
	}

	limit := float64(c.targetTokens) * oversizeFactor
	var chunks, current []string
	currentTokens := 0
	// Sections are contiguous slices of text, so joining them without a
	// separator reproduces the original span.
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.TrimSpace(strings.Join(current, "")))
			current = nil
			currentTokens = 0
		}
	}
	for _, section := range sections {
		if strings.TrimSpace(section) == "" {
			continue
		}
		tokens := c.counter.Count(section)
		switch {
		case float64(tokens) > limit:
			flush()
			chunks = append(chunks, strings.TrimSpace(section))
		case currentTokens+tokens > c.targetTokens && len(current) > 0:
			flush()
			current = []string{section}
			currentTokens = tokens
		default:
			current = append(current, section)
			currentTokens += tokens
		}
	}
	flush()
	return chunks
}

func (c *Chunker) chunkBySentences(text string) []string {
	var chunks, current []string
	currentTokens := 0
	for _, sentence := range SplitSentences(text) {
		tokens := c.counter.Count(sentence)
		if currentTokens+tokens > c.targetTokens && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current, currentTokens = c.overlapTail(current)
		}
		current = append(current, sentence)
		currentTokens += tokens
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// overlapTail returns the longest run of trailing sentences whose total token
// count stays within the overlap budget.
func (c *Chunker) overlapTail(sentences []string) ([]string, int) {
	total := 0
	start := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		n := c.counter.Count(sentences[i])
		if total+n > c.overlapTokens {
			break
		}
		total += n
		start = i
	}
	tail := make([]string, len(sentences)-start)
	copy(tail, sentences[start:])
	return tail, total
}

// SplitSentences splits text after '.', '!' or '?' when followed by whitespace.
// The whitespace run is dropped; blank pieces are skipped.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
		default:
			continue
		}
		j := i + 1
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		if piece := text[start : i+1]; strings.TrimSpace(piece) != "" {
			out = append(out, piece)
		}
		start = j
		i = j - 1
	}
	if start < len(text) {
		if piece := text[start:]; strings.TrimSpace(piece) != "" {
			out = append(out, piece)
		}
	}
	return out
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
