package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/index"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/passage"
)

// Snapshot is a complete copy of the retriever's contents. Vectors[i] is the
// embedding of Passages[i].
type Snapshot struct {
	Dimensions int
	Passages   []passage.Passage
	Vectors    [][]float32
	Documents  passage.DocumentMapping
}

// vectorExporter is implemented by indexes that hold their vectors in
// process, such as [*index.Flat]. [New] uses it to adopt a non-empty index.
type vectorExporter interface {
	Vectors() [][]float32
}

// Snapshot copies out every passage, vector and mapping entry. It works the
// same for every index backend.
func (r *Retriever) Snapshot() (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Dimensions: r.index.Dimensions(),
		Passages:   r.store.All(),
		Vectors:    slices.Clone(r.vectors),
		Documents:  r.store.Statistics(),
	}
	if len(snap.Passages) != len(snap.Vectors) {
		return Snapshot{}, fmt.Errorf("rag: snapshot: %d passages but %d vectors", len(snap.Passages), len(snap.Vectors))
	}
	return snap, nil
}

// Restore replaces the retriever's contents with snap. On error the
// retriever is left empty.
func (r *Retriever) Restore(ctx context.Context, snap Snapshot) error {
	if len(snap.Passages) != len(snap.Vectors) {
		return fmt.Errorf("rag: restore: %d passages but %d vectors", len(snap.Passages), len(snap.Vectors))
	}
	if len(snap.Passages) > 0 && snap.Dimensions != r.index.Dimensions() {
		return &index.DimensionMismatchError{Want: r.index.Dimensions(), Got: snap.Dimensions}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.index.Clear(ctx); err != nil {
		return fmt.Errorf("rag: restore: clear index: %w", err)
	}
	r.store.Clear()
	r.vectors = nil

	if len(snap.Vectors) > 0 {
		if _, err := r.index.Add(ctx, snap.Vectors); err != nil {
			return errors.Join(fmt.Errorf("rag: restore: add vectors: %w", err), r.rollback(ctx, 0))
		}
	}
	if err := r.store.Restore(snap.Passages); err != nil {
		return errors.Join(fmt.Errorf("rag: restore: %w", err), r.rollback(ctx, 0))
	}
	for name, stats := range snap.Documents {
		r.store.Record(name, stats)
	}
	r.vectors = slices.Clone(snap.Vectors)

	logging.FromContext(ctx).Info("retriever restored",
		slog.Int("passages", len(snap.Passages)),
		slog.Int("documents", len(snap.Documents)),
	)
	return nil
}
