package chunking

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE used by OpenAI's text-embedding-3 models.
const DefaultEncoding = "cl100k_base"

// TokenCounter counts tokens the way the embedding model will.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts BPE tokens with a tiktoken encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding (e.g. cl100k_base).
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the number of BPE tokens in text.
func (t *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// WordCounter counts whitespace-separated words. Used in tests and as a fallback
// when no BPE encoding can be loaded.
type WordCounter struct{}

// Count returns the number of words in text.
func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}
