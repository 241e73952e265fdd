package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/embedder"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/index"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/passage"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/segment"
)

// Retriever keeps the vector index and passage store in lockstep. It is safe
// for concurrent use: searches run in parallel, while ingestion's add step,
// Clear and Restore are exclusive.
type Retriever struct {
	mu sync.RWMutex

	// embedder converts passage and query text to vectors.
	embedder embedder.Provider

	// index holds one vector per passage; handle == passage id.
	index index.Index

	// store holds passage text and the per-document mapping.
	store *passage.Store

	// vectors[i] is the embedding of passage i. Remote indexes can not hand
	// their vectors back, so snapshots are taken from here.
	vectors [][]float32

	// cfg is the segmentation window applied at ingestion time.
	cfg segment.Config

	progress ProgressFunc
	observer Observer
}

// New constructs a Retriever. The provider and index must agree on the
// vector dimension and cfg must be a valid window.
func New(emb embedder.Provider, idx index.Index, store *passage.Store, cfg segment.Config, opts ...Option) (*Retriever, error) {
	if emb == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if idx == nil {
		return nil, fmt.Errorf("rag: index must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: passage store must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if emb.Dimensions() != idx.Dimensions() {
		return nil, &index.DimensionMismatchError{Want: idx.Dimensions(), Got: emb.Dimensions()}
	}
	if store.Size() != idx.Size() {
		return nil, fmt.Errorf("rag: passage store has %d passages but index has %d vectors", store.Size(), idx.Size())
	}

	r := &Retriever{
		embedder: emb,
		index:    idx,
		store:    store,
		cfg:      cfg,
		observer: nopObserver{},
	}
	if n := idx.Size(); n > 0 {
		exp, ok := idx.(vectorExporter)
		if !ok {
			return nil, fmt.Errorf("rag: index already holds %d vectors that can not be read back", n)
		}
		r.vectors = exp.Vectors()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Ingest segments, embeds and stores one document. On failure nothing from
// the document remains in the index, the store or the mapping, and the
// returned error is an [*IngestionFailure].
//
// A document without any words is recorded in the mapping with zero chunks.
func (r *Retriever) Ingest(ctx context.Context, doc Document) error {
	log := logging.FromContext(ctx).With(slog.String("document", doc.Name))
	start := time.Now()

	if err := r.ingest(ctx, doc, log); err != nil {
		r.observer.IngestionFailed(doc.Name)
		log.Warn("ingestion failed", slog.String("error", err.Error()))
		return &IngestionFailure{DocumentName: doc.Name, Cause: err}
	}

	log.Debug("document ingested", slog.Duration("elapsed", time.Since(start)))
	return nil
}

func (r *Retriever) ingest(ctx context.Context, doc Document, log *slog.Logger) error {
	drafts, err := segment.SegmentPages(doc.Pages, r.cfg.ChunkSize, r.cfg.ChunkOverlap)
	if err != nil {
		return err
	}

	stats := passage.DocumentStats{TotalChunks: len(drafts), SourceSizeBytes: doc.SizeBytes}
	if len(drafts) == 0 {
		r.mu.Lock()
		r.store.Record(doc.Name, stats)
		r.mu.Unlock()
		log.Info("document has no text", slog.Int64("size_bytes", doc.SizeBytes))
		r.observer.DocumentIngested(doc.Name, 0)
		return nil
	}

	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.Text
		stats.TotalWords += d.WordCount
	}

	// Embedding is the slow part and touches no shared state.
	vecs, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("rag: embed %d passages: %w", len(texts), err)
	}
	if len(vecs) != len(drafts) {
		return fmt.Errorf("rag: embedder returned %d vectors for %d passages", len(vecs), len(drafts))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.index.Size()
	if r.store.Size() != n {
		return fmt.Errorf("rag: index (%d) and passage store (%d) out of sync", n, r.store.Size())
	}

	handles, err := r.index.Add(ctx, vecs)
	if err != nil {
		return errors.Join(fmt.Errorf("rag: add vectors: %w", err), r.rollback(ctx, n))
	}

	passages := r.store.Append(drafts, doc.Name)
	if len(handles) != len(passages) {
		return errors.Join(
			fmt.Errorf("rag: index returned %d handles for %d passages", len(handles), len(passages)),
			r.rollback(ctx, n),
		)
	}
	for i, p := range passages {
		if handles[i] != p.ID {
			return errors.Join(
				fmt.Errorf("rag: handle %d does not match passage id %d", handles[i], p.ID),
				r.rollback(ctx, n),
			)
		}
	}

	r.vectors = append(r.vectors, vecs...)
	r.store.Record(doc.Name, stats)
	log.Info("document stored",
		slog.Int("passages", len(passages)),
		slog.Int("words", stats.TotalWords),
		slog.Int("index_size", r.index.Size()),
	)
	r.observer.DocumentIngested(doc.Name, len(passages))
	return nil
}

// rollback rewinds index and store to n entries. It must be called with the
// write lock held. The caller's context may already be cancelled, so the
// truncation runs without it.
func (r *Retriever) rollback(ctx context.Context, n int) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	if err := r.index.Truncate(ctx, n); err != nil {
		errs = append(errs, fmt.Errorf("rag: rollback index: %w", err))
	}
	if r.store.Size() > n {
		if err := r.store.Truncate(n); err != nil {
			errs = append(errs, fmt.Errorf("rag: rollback passages: %w", err))
		}
	}
	if len(r.vectors) > n {
		r.vectors = r.vectors[:n]
	}
	return errors.Join(errs...)
}

// IngestAll ingests docs in order and returns one failure per document that
// could not be ingested. Failures do not stop the batch.
func (r *Retriever) IngestAll(ctx context.Context, docs []Document) []*IngestionFailure {
	var failures []*IngestionFailure
	for i, doc := range docs {
		if err := r.Ingest(ctx, doc); err != nil {
			var f *IngestionFailure
			if !errors.As(err, &f) {
				f = &IngestionFailure{DocumentName: doc.Name, Cause: err}
			}
			f.Position = i
			failures = append(failures, f)
		}
		if r.progress != nil {
			r.progress(i+1, len(docs), doc.Name)
		}
	}
	return failures
}

// Search returns up to topK passages closest to query, most similar first.
// An empty retriever yields an empty result, not an error.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, &index.InvalidArgumentError{Param: "top_k", Value: topK, Reason: "must be positive"}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.store.Size()
	if size == 0 {
		return []SearchResult{}, nil
	}

	start := time.Now()
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("rag: embedder returned %d vectors for query", len(vecs))
	}

	hits, err := r.index.Search(ctx, vecs[0], min(topK, size))
	if err != nil {
		return nil, fmt.Errorf("rag: vector search: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		p, err := r.store.Lookup(h.Handle)
		if err != nil {
			return nil, fmt.Errorf("rag: resolve handle: %w", err)
		}
		results = append(results, SearchResult{
			Passage:    p,
			Distance:   h.Distance,
			Similarity: Similarity(h.Distance),
		})
	}
	slices.SortStableFunc(results, func(a, b SearchResult) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})

	elapsed := time.Since(start)
	r.observer.SearchCompleted(elapsed, len(results))
	logging.FromContext(ctx).Debug("search complete",
		slog.Int("top_k", topK),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", elapsed),
	)
	return results, nil
}

// Lookup returns the passage with the given id.
func (r *Retriever) Lookup(id int64) (passage.Passage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Lookup(id)
}

// Passages returns every stored passage in id order.
func (r *Retriever) Passages() []passage.Passage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.All()
}

// Clear removes every passage, vector and mapping entry.
func (r *Retriever) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.index.Clear(ctx); err != nil {
		return fmt.Errorf("rag: clear index: %w", err)
	}
	r.store.Clear()
	r.vectors = nil
	logging.FromContext(ctx).Info("retriever cleared")
	return nil
}

// Statistics returns a summary of the current contents.
func (r *Retriever) Statistics() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := r.store.Statistics()
	total := 0
	for _, d := range docs {
		total += d.TotalChunks
	}
	return Stats{
		TotalChunks:        total,
		TotalDocuments:     len(docs),
		EmbeddingDimension: r.embedder.Dimensions(),
		IndexSize:          r.index.Size(),
		ChunkSize:          r.cfg.ChunkSize,
		ChunkOverlap:       r.cfg.ChunkOverlap,
		Documents:          docs,
	}
}
