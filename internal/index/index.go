// Package index stores passage embeddings and answers exact k-nearest-neighbour
// queries by squared Euclidean (L2) distance.
//
// An index owns no text. It holds vectors and the integer handles it assigned
// to them. Handles are assigned in insertion order starting at 0 and are only
// ever reused after [Index.Truncate] or [Index.Clear] rewinds the counter, which
// the retriever does in lockstep with the passage store.
package index

import (
	"context"
	"fmt"
)

// Hit is one search result: the handle of a stored vector and its squared L2
// distance from the query. Lower is closer.
type Hit struct {
	Handle   int64
	Distance float32
}

// Index is an exact nearest-neighbour index over fixed-dimension vectors.
type Index interface {
	// Dimensions reports the fixed vector length of the index.
	Dimensions() int

	// Add appends vectors and returns their handles in insertion order.
	// If any vector has the wrong length nothing is added.
	Add(ctx context.Context, vecs [][]float32) ([]int64, error)

	// Search returns the min(k, Size()) stored vectors closest to q, in
	// ascending distance order. Ties are broken by the lower handle.
	Search(ctx context.Context, q []float32, k int) ([]Hit, error)

	// Size reports the number of stored vectors.
	Size() int

	// Truncate discards every vector whose handle is >= n and rewinds the
	// handle counter to n. It is how a failed ingestion is rolled back.
	Truncate(ctx context.Context, n int) error

	// Clear discards every vector and resets the handle counter to 0.
	Clear(ctx context.Context) error
}

// DimensionMismatchError reports a vector whose length differs from the
// index's fixed dimension. It usually means the embedding provider was
// swapped mid-session.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("index: dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// InvalidArgumentError reports a caller bug such as a non-positive k.
type InvalidArgumentError struct {
	Param  string
	Value  int
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("index: invalid %s %d: %s", e.Param, e.Value, e.Reason)
}

// checkK validates a search k.
func checkK(k int) error {
	if k <= 0 {
		return &InvalidArgumentError{Param: "k", Value: k, Reason: "must be positive"}
	}
	return nil
}

// checkDims validates every vector against dims before anything is stored.
func checkDims(dims int, vecs ...[]float32) error {
	for _, v := range vecs {
		if len(v) != dims {
			return &DimensionMismatchError{Want: dims, Got: len(v)}
		}
	}
	return nil
}
