// Package segment splits extracted document text into overlapping,
// word-counted passages ("drafts") that are small enough to embed and
// specific enough to cite.
//
// Windows are measured in words, not characters or tokens. Before a window
// is cut, the segmenter looks back up to [SentenceLookback] words for the
// end of a sentence so passages rarely stop mid-sentence. Consecutive drafts
// share Overlap words so a match that straddles a cut is retrievable from
// either neighbour.
package segment

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	// DefaultChunkSize is the target window length in words.
	DefaultChunkSize = 500
	// DefaultChunkOverlap is the number of trailing words repeated at the
	// head of the next window.
	DefaultChunkOverlap = 100
	// SentenceLookback is how far back from a hard window end the segmenter
	// searches for a word ending in '.', '!' or '?'.
	SentenceLookback = 50
)

// Page is one page of extracted text. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Draft is a passage before it has been assigned an id by the passage store.
type Draft struct {
	// Text is the space-joined words of the window. Never empty.
	Text string
	// SequenceIndex is the 0-based position of the draft within its document.
	SequenceIndex int
	// WordCount is the number of words in Text.
	WordCount int
	// StartWord and EndWord delimit the window in the document's word
	// sequence as a half-open range [StartWord, EndWord).
	StartWord int
	EndWord   int
	// MinPage and MaxPage are the first and last pages the window touches.
	MinPage int
	MaxPage int
}

// ConfigurationError reports a chunk size or overlap that cannot produce a
// terminating segmentation.
type ConfigurationError struct {
	Param  string
	Value  int
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("segment: invalid %s %d: %s", e.Param, e.Value, e.Reason)
}

// Config holds the window parameters used at ingestion time.
type Config struct {
	// ChunkSize is the target number of words per draft.
	ChunkSize int
	// ChunkOverlap is the number of words shared by consecutive drafts.
	ChunkOverlap int
}

// DefaultConfig returns the 500/100 window used when nothing is configured.
func DefaultConfig() Config {
	return Config{ChunkSize: DefaultChunkSize, ChunkOverlap: DefaultChunkOverlap}
}

// ConfigFromEnv reads MAX_CHUNK_SIZE and CHUNK_OVERLAP, falling back to the
// defaults for unset or unparseable values. The result is not validated;
// call [Config.Validate] before use.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v, err := strconv.Atoi(os.Getenv("MAX_CHUNK_SIZE")); err == nil {
		cfg.ChunkSize = v
	}
	if v, err := strconv.Atoi(os.Getenv("CHUNK_OVERLAP")); err == nil {
		cfg.ChunkOverlap = v
	}
	return cfg
}

// Validate returns a [*ConfigurationError] if the window can not make
// forward progress.
func (c Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return &ConfigurationError{Param: "chunk_size", Value: c.ChunkSize, Reason: "must be positive"}
	case c.ChunkOverlap < 0:
		return &ConfigurationError{Param: "chunk_overlap", Value: c.ChunkOverlap, Reason: "must not be negative"}
	case c.ChunkOverlap >= c.ChunkSize:
		return &ConfigurationError{
			Param:  "chunk_overlap",
			Value:  c.ChunkOverlap,
			Reason: fmt.Sprintf("must be smaller than chunk_size %d", c.ChunkSize),
		}
	}
	return nil
}

// Segment splits a single block of text into drafts. All drafts report page 1.
// Empty or whitespace-only text yields no drafts and no error.
func Segment(text string, size, overlap int) ([]Draft, error) {
	return SegmentPages([]Page{{Number: 1, Text: text}}, size, overlap)
}

// SegmentPages splits the pages of one document into drafts. Words from all
// pages are treated as one sequence, so a draft may span a page break; its
// MinPage/MaxPage record the range it covers.
func SegmentPages(pages []Page, size, overlap int) ([]Draft, error) {
	if err := (Config{ChunkSize: size, ChunkOverlap: overlap}).Validate(); err != nil {
		return nil, err
	}

	var (
		words   []string
		pageNos []int
	)
	for _, p := range pages {
		for _, w := range strings.Fields(p.Text) {
			words = append(words, w)
			pageNos = append(pageNos, p.Number)
		}
	}

	n := len(words)
	if n == 0 {
		return nil, nil
	}
	if n <= size {
		return []Draft{newDraft(words, pageNos, 0, n, 0)}, nil
	}

	var drafts []Draft
	for start := 0; start < n; {
		end := start + size
		if end >= n {
			end = n
		} else {
			end = snapToSentence(words, start, end)
		}

		drafts = append(drafts, newDraft(words, pageNos, start, end, len(drafts)))
		if end == n {
			break
		}

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return drafts, nil
}

// snapToSentence moves end back to just after the last sentence-ending word
// within the lookback window, or returns end unchanged if there is none.
// The returned end is always greater than start.
func snapToSentence(words []string, start, end int) int {
	lo := end - SentenceLookback
	if lo < start {
		lo = start
	}
	for i := end - 1; i >= lo; i-- {
		if endsSentence(words[i]) {
			return i + 1
		}
	}
	return end
}

func endsSentence(w string) bool {
	switch w[len(w)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

func newDraft(words []string, pageNos []int, start, end, seq int) Draft {
	minPage, maxPage := pageNos[start], pageNos[start]
	for _, p := range pageNos[start:end] {
		if p < minPage {
			minPage = p
		}
		if p > maxPage {
			maxPage = p
		}
	}
	return Draft{
		Text:          strings.Join(words[start:end], " "),
		SequenceIndex: seq,
		WordCount:     end - start,
		StartWord:     start,
		EndWord:       end,
		MinPage:       minPage,
		MaxPage:       maxPage,
	}
}
