// Package passage owns the text side of the retrieval pipeline: the
// immutable [Passage] records that index handles point back to, and the
// per-document [DocumentMapping] used for statistics.
//
// A [Store] assigns ids densely from 0 in append order. Callers append
// passages and their vectors in the same batch and order so that a passage's
// id equals its vector's index handle.
package passage

import (
	"fmt"
	"maps"
	"sync"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/segment"
)

// Passage is a citable unit of document text with its provenance.
type Passage struct {
	// ID is unique within a Store and equals the passage's index handle.
	ID int64 `json:"id"`
	// DocumentName is the source document's display name.
	DocumentName string `json:"document"`
	// PageNumber is the page the passage starts on (1-based).
	PageNumber int `json:"page"`
	// MinPage and MaxPage bound the pages the passage spans.
	MinPage int `json:"min_page"`
	MaxPage int `json:"max_page"`
	// SequenceIndex is the passage's 0-based position within its document.
	SequenceIndex int `json:"chunk"`
	// Text is the passage body. Never empty.
	Text string `json:"text"`
	// WordCount is the number of words in Text.
	WordCount int `json:"word_count"`
}

// CoversPage reports whether page falls within the passage's page range.
func (p Passage) CoversPage(page int) bool {
	return page >= p.MinPage && page <= p.MaxPage
}

// DocumentStats summarises one ingested document.
type DocumentStats struct {
	TotalChunks     int   `json:"total_chunks"`
	TotalWords      int   `json:"total_words"`
	SourceSizeBytes int64 `json:"source_size_bytes"`
}

// DocumentMapping maps a document name to its statistics.
type DocumentMapping map[string]DocumentStats

// NotFoundError reports a lookup for an id the store never assigned. Seeing
// one means the index and store have drifted apart.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("passage: id %d not found", e.ID)
}

// Store is an append-only, in-memory passage store. It is safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	passages []Passage
	docs     DocumentMapping
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{docs: make(DocumentMapping)}
}

// Append converts drafts into passages for documentName, assigning ids that
// continue from the current size, and returns them.
func (s *Store) Append(drafts []segment.Draft, documentName string) []Passage {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := int64(len(s.passages))
	out := make([]Passage, len(drafts))
	for i, d := range drafts {
		out[i] = Passage{
			ID:            next + int64(i),
			DocumentName:  documentName,
			PageNumber:    d.MinPage,
			MinPage:       d.MinPage,
			MaxPage:       d.MaxPage,
			SequenceIndex: d.SequenceIndex,
			Text:          d.Text,
			WordCount:     d.WordCount,
		}
	}
	s.passages = append(s.passages, out...)
	return out
}

// Restore appends already-built passages, e.g. from a snapshot. Their ids
// must continue the store's sequence exactly.
func (s *Store) Restore(passages []Passage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range passages {
		want := int64(len(s.passages) + i)
		if p.ID != want {
			return fmt.Errorf("passage: restore: passage %d has id %d, want %d", i, p.ID, want)
		}
	}
	s.passages = append(s.passages, passages...)
	return nil
}

// Lookup returns the passage with the given id.
func (s *Store) Lookup(id int64) (Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id < 0 || id >= int64(len(s.passages)) {
		return Passage{}, &NotFoundError{ID: id}
	}
	return s.passages[id], nil
}

// Size reports the number of stored passages.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages)
}

// All returns a copy of every stored passage in id order.
func (s *Store) All() []Passage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Passage(nil), s.passages...)
}

// Record adds stats to the mapping entry for name. Ingesting the same name
// twice is additive.
func (s *Store) Record(name string, stats DocumentStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.docs[name]
	cur.TotalChunks += stats.TotalChunks
	cur.TotalWords += stats.TotalWords
	cur.SourceSizeBytes += stats.SourceSizeBytes
	s.docs[name] = cur
}

// Statistics returns a copy of the document mapping.
func (s *Store) Statistics() DocumentMapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.docs)
}

// HasDocument reports whether name has a mapping entry.
func (s *Store) HasDocument(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[name]
	return ok
}

// Truncate discards passages with id >= n. The document mapping is not
// touched; it is only updated after a document has been fully stored.
func (s *Store) Truncate(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 0 || n > len(s.passages) {
		return fmt.Errorf("passage: truncate to %d out of range [0, %d]", n, len(s.passages))
	}
	clear(s.passages[n:])
	s.passages = s.passages[:n]
	return nil
}

// Clear discards every passage and the document mapping.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passages = nil
	s.docs = make(DocumentMapping)
}
