// Package rag is the retrieval core of StudyMate. A [Retriever] ties an
// embedding provider, a vector index and a passage store together and owns
// the only two multi-step protocols in the system: ingesting a document and
// answering a similarity query.
//
// Concrete backends (hash, Ollama or OpenAI embedders; flat, Qdrant or
// pgvector indexes) satisfy the [embedder.Provider] and [index.Index]
// interfaces so the retriever never depends on a specific one.
package rag

import (
	"fmt"
	"time"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/passage"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/segment"
)

// Document is one uploaded source, already reduced to page text.
type Document struct {
	// Name is the display name used in citations, e.g. "Lecture 3.pdf".
	Name string

	// Pages holds the extracted text of each page in page order.
	Pages []segment.Page

	// SizeBytes is the size of the original upload, recorded in statistics.
	SizeBytes int64
}

// SearchResult is one passage returned by [Retriever.Search].
type SearchResult struct {
	Passage passage.Passage

	// Distance is the squared L2 distance between query and passage. Lower
	// is closer.
	Distance float32

	// Similarity is 1/(1+Distance), in (0, 1]. It is a monotonic rescaling
	// of distance for display, not a calibrated probability.
	Similarity float32
}

// Similarity converts a squared L2 distance into a (0, 1] score.
func Similarity(distance float32) float32 {
	return 1 / (1 + distance)
}

// IngestionFailure reports a document that could not be ingested. The
// retriever's state is exactly what it was before the attempt.
type IngestionFailure struct {
	DocumentName string
	// Position is the document's index in the batch given to
	// [Retriever.IngestAll]. Names may repeat within a batch; positions do not.
	Position int
	Cause    error
}

func (e *IngestionFailure) Error() string {
	return fmt.Sprintf("rag: ingest %q: %v", e.DocumentName, e.Cause)
}

func (e *IngestionFailure) Unwrap() error { return e.Cause }

// Succeeded returns the names of the docs that have no failure at their
// position, in batch order.
func Succeeded(docs []Document, failures []*IngestionFailure) []string {
	failed := make(map[int]bool, len(failures))
	for _, f := range failures {
		failed[f.Position] = true
	}
	names := make([]string, 0, len(docs))
	for i, d := range docs {
		if !failed[i] {
			names = append(names, d.Name)
		}
	}
	return names
}

// Stats is a point-in-time summary of the retriever's contents.
type Stats struct {
	TotalChunks        int                     `json:"total_chunks"`
	TotalDocuments     int                     `json:"total_documents"`
	EmbeddingDimension int                     `json:"embedding_dimension"`
	IndexSize          int                     `json:"index_size"`
	ChunkSize          int                     `json:"chunk_size"`
	ChunkOverlap       int                     `json:"chunk_overlap"`
	Documents          passage.DocumentMapping `json:"documents"`
}

// ProgressFunc is called after each document handled by
// [Retriever.IngestAll]. done counts documents finished so far, including
// failures.
type ProgressFunc func(done, total int, name string)

// Observer receives pipeline events. The server wires it to Prometheus.
type Observer interface {
	DocumentIngested(name string, passages int)
	IngestionFailed(name string)
	SearchCompleted(elapsed time.Duration, results int)
}

type nopObserver struct{}

func (nopObserver) DocumentIngested(string, int)       {}
func (nopObserver) IngestionFailed(string)             {}
func (nopObserver) SearchCompleted(time.Duration, int) {}

// Option configures a [Retriever].
type Option func(*Retriever)

// WithProgress sets the callback used by [Retriever.IngestAll].
func WithProgress(fn ProgressFunc) Option {
	return func(r *Retriever) { r.progress = fn }
}

// WithObserver sets the event sink for ingestion and search metrics.
func WithObserver(o Observer) Option {
	return func(r *Retriever) {
		if o != nil {
			r.observer = o
		}
	}
}
