// Package citation frames retrieved passages for the generation service and
// reads source markers back out of its answers.
//
// The framing and the parser share one marker syntax, "[<document> p.<page>]",
// so a model that copies the label of a context block produces a citation
// that [ParseCitations] can extract.
package citation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/passage"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
)

// Delimiter separates context blocks in the string built by [BuildContext].
const Delimiter = "\n\n---\n\n"

// markerRE matches "[<document> p.<page>]". The document part may contain
// spaces but no brackets.
var markerRE = regexp.MustCompile(`\[([^\[\]]+?)\s+p\.\s*(\d+)\]`)

// Citation is one distinct source marker found in an answer.
type Citation struct {
	DocumentName string `json:"document"`
	PageNumber   int    `json:"page"`
	// Count is how many times the marker appeared. Always >= 1.
	Count int `json:"count"`
}

// String renders the citation in marker syntax.
func (c Citation) String() string {
	return Marker(c.DocumentName, c.PageNumber)
}

// Marker renders a document and page in the syntax [ParseCitations] reads.
func Marker(document string, page int) string {
	return fmt.Sprintf("[%s p.%d]", document, page)
}

// BuildContext renders results, in the order given, as labelled blocks
// joined by [Delimiter]. This string is the only passage text sent to the
// generation service.
func BuildContext(results []rag.SearchResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		p := r.Passage
		blocks[i] = fmt.Sprintf("%s (similarity %.3f, chunk %d, pages %d-%d)\n%s",
			Marker(p.DocumentName, p.PageNumber),
			r.Similarity,
			p.SequenceIndex,
			p.MinPage,
			p.MaxPage,
			p.Text,
		)
	}
	return strings.Join(blocks, Delimiter)
}

// ParseCitations extracts every source marker from answer. Repeated
// (document, page) pairs are merged into one Citation whose Count is the
// number of occurrences. Order follows first appearance. Names are taken
// verbatim after trimming whitespace; they are not matched against known
// documents.
func ParseCitations(answer string) []Citation {
	type key struct {
		doc  string
		page int
	}
	var (
		out  []Citation
		seen = make(map[key]int)
	)
	for _, m := range markerRE.FindAllStringSubmatch(answer, -1) {
		page, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		k := key{doc: strings.TrimSpace(m[1]), page: page}
		if i, ok := seen[k]; ok {
			out[i].Count++
			continue
		}
		seen[k] = len(out)
		out = append(out, Citation{DocumentName: k.doc, PageNumber: k.page, Count: 1})
	}
	return out
}

// Resolve splits citations into those that point at a stored passage
// (same document name, page within the passage's range) and those that do
// not. Unresolved citations usually mean the model invented a source; they
// are meant to be shown as a warning.
func Resolve(citations []Citation, passages []passage.Passage) (resolved, unresolved []Citation) {
	byDoc := make(map[string][]passage.Passage)
	for _, p := range passages {
		byDoc[p.DocumentName] = append(byDoc[p.DocumentName], p)
	}

	for _, c := range citations {
		if covers(byDoc[c.DocumentName], c.PageNumber) {
			resolved = append(resolved, c)
		} else {
			unresolved = append(unresolved, c)
		}
	}
	return resolved, unresolved
}

func covers(passages []passage.Passage, page int) bool {
	for _, p := range passages {
		if p.CoversPage(page) {
			return true
		}
	}
	return false
}
