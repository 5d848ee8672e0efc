// Package docversion picks which published versions of a bill are worth embedding.
package docversion

import (
	"strings"

	"github.com/hyperjump/molegis/internal/models"
)

// MaxSelected is the most documents Select returns for one bill.
const MaxSelected = 2

// versionPriority lists version labels from most final to least final.
var versionPriority = []string{
	"truly agreed",
	"truly_agreed",
	"senate_comm_sub",
	"senate comm sub",
	"senate committee substitute",
	"perfected",
	"committee",
	"introduced",
}

// IsFiscalNote reports whether doc is a fiscal note rather than a version of the bill text.
// Fiscal notes are published as *.ORG.pdf files.
func IsFiscalNote(doc *models.Document) bool {
	return doc.IsFiscalNote || strings.Contains(doc.URL, ".ORG") || strings.Contains(doc.Title, ".ORG")
}

// Embeddable filters out fiscal notes and documents without extracted text.
func Embeddable(docs []models.Document) []models.Document {
	out := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		if IsFiscalNote(&doc) || strings.TrimSpace(doc.ExtractedText) == "" {
			continue
		}
		out = append(out, doc)
	}
	return out
}

// Select returns the introduced version and the most final version of a bill,
// deduplicated. If no label matches either, the first embeddable document is returned.
func Select(docs []models.Document) []models.Document {
	candidates := Embeddable(docs)
	if len(candidates) == 0 {
		return nil
	}

	introduced := -1
	for i := range candidates {
		if strings.Contains(strings.ToLower(candidates[i].Title), "introduced") {
			introduced = i
			break
		}
	}

	latest := mostFinal(candidates)

	selected := make([]models.Document, 0, MaxSelected)
	if introduced >= 0 {
		selected = append(selected, candidates[introduced])
	}
	if latest >= 0 && latest != introduced {
		selected = append(selected, candidates[latest])
	}
	if len(selected) == 0 {
		selected = append(selected, candidates[0])
	}
	return selected
}

// mostFinal walks versionPriority and returns the index of the first document
// whose label matches, or -1.
func mostFinal(docs []models.Document) int {
	for _, label := range versionPriority {
		for i := range docs {
			lower := strings.ToLower(docs[i].Title)
			if strings.Contains(strings.ReplaceAll(lower, " ", "_"), label) || strings.Contains(lower, label) {
				return i
			}
		}
	}
	return -1
}
