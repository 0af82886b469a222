// Package index provides an in-memory search index over loaded prompts.
package index

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/starford/promptvault/internal/models"
)

// Index holds one normalised search blob per document, in build order.
type Index struct {
	docs  []models.Document
	blobs []string
	slugs map[string]int
}

// Build indexes title, description, tags, use cases and body of each document.
// A later document with a duplicate slug replaces the earlier one.
func Build(docs []models.Document) *Index {
	ix := &Index{slugs: make(map[string]int, len(docs))}
	for _, d := range docs {
		blob := Normalize(strings.Join([]string{
			d.Metadata.Title,
			d.Metadata.Description,
			strings.Join(d.Metadata.Tags, " "),
			strings.Join(d.Metadata.UseCases, " "),
			d.Body,
		}, " "))
		if i, ok := ix.slugs[d.Slug]; ok {
			ix.docs[i] = d
			ix.blobs[i] = blob
			continue
		}
		ix.slugs[d.Slug] = len(ix.docs)
		ix.docs = append(ix.docs, d)
		ix.blobs = append(ix.blobs, blob)
	}
	return ix
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int { return len(ix.docs) }

// Search returns documents whose blob contains every whitespace-separated term
// of query. An empty query matches nothing.
func (ix *Index) Search(query string) []models.Document {
	terms := strings.Fields(Normalize(query))
	if len(terms) == 0 {
		return nil
	}
	var out []models.Document
	for i, blob := range ix.blobs {
		if containsAll(blob, terms) {
			out = append(out, ix.docs[i])
		}
	}
	return out
}

// Normalize applies compatibility decomposition and Unicode case folding.
func Normalize(s string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(norm.NFKD.String(s))
}

func containsAll(blob string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(blob, t) {
			return false
		}
	}
	return true
}
