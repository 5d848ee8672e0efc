// Package extract turns downloaded bill documents into plain text.
package extract

import (
	"bytes"
	"errors"
	"mime"
	"path"
	"strings"
)

// ErrEmptyDocument is returned for zero-length content.
var ErrEmptyDocument = errors.New("empty document")

var pdfMagic = []byte("%PDF-")

// Format is a supported document format.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatPlain Format = "plain"
)

// Extractor extracts plain text from document bytes.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Detect picks a format from the content type, then the URL extension, then the
// leading bytes. Unknown content is treated as plain text.
func Detect(content []byte, contentType, url string) Format {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "application/pdf", "application/x-pdf":
			return FormatPDF
		case "text/plain":
			return FormatPlain
		}
	}
	switch strings.ToLower(path.Ext(stripQuery(url))) {
	case ".pdf":
		return FormatPDF
	case ".txt":
		return FormatPlain
	}
	if bytes.HasPrefix(bytes.TrimLeft(content, "\r\n\t "), pdfMagic) {
		return FormatPDF
	}
	return FormatPlain
}

// ExtractBytes extracts text from content. contentType and url are hints for Detect.
func (e *Extractor) ExtractBytes(content []byte, contentType, url string) (string, error) {
	if len(content) == 0 {
		return "", ErrEmptyDocument
	}
	switch Detect(content, contentType, url) {
	case FormatPDF:
		return extractPDF(content)
	default:
		return extractPlain(content)
	}
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
