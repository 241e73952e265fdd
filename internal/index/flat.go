package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Flat is an in-memory exact index. Vectors are kept in one contiguous
// slab and every query scans all of them, which is fast enough for the
// hundreds-to-thousands of passages a study session holds.
//
// Because handles are dense and assigned from 0, a vector's handle is its
// position in the slab.
type Flat struct {
	mu   sync.RWMutex
	dims int
	data []float32
}

// NewFlat returns an empty Flat index for vectors of length dims.
func NewFlat(dims int) (*Flat, error) {
	if dims <= 0 {
		return nil, &InvalidArgumentError{Param: "dimensions", Value: dims, Reason: "must be positive"}
	}
	return &Flat{dims: dims}, nil
}

// Dimensions implements [Index].
func (f *Flat) Dimensions() int { return f.dims }

// Size implements [Index].
func (f *Flat) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.data) / f.dims
}

// Add implements [Index].
func (f *Flat) Add(_ context.Context, vecs [][]float32) ([]int64, error) {
	if err := checkDims(f.dims, vecs...); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	next := int64(len(f.data) / f.dims)
	handles := make([]int64, len(vecs))
	for i, v := range vecs {
		f.data = append(f.data, v...)
		handles[i] = next + int64(i)
	}
	return handles, nil
}

// Search implements [Index].
func (f *Flat) Search(_ context.Context, q []float32, k int) ([]Hit, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	if err := checkDims(f.dims, q); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	n := len(f.data) / f.dims
	if n == 0 {
		return []Hit{}, nil
	}

	hits := make([]Hit, n)
	for h := 0; h < n; h++ {
		hits[h] = Hit{Handle: int64(h), Distance: squaredL2(q, f.data[h*f.dims:(h+1)*f.dims])}
	}
	sortHits(hits)

	return hits[:min(k, n)], nil
}

// Truncate implements [Index].
func (f *Flat) Truncate(_ context.Context, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	size := len(f.data) / f.dims
	if n < 0 || n > size {
		return fmt.Errorf("index: truncate to %d out of range [0, %d]", n, size)
	}
	f.data = f.data[:n*f.dims]
	return nil
}

// Clear implements [Index].
func (f *Flat) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = nil
	return nil
}

// Vectors returns a copy of every stored vector, indexed by handle. It is
// used to snapshot the index for persistence.
func (f *Flat) Vectors() [][]float32 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := len(f.data) / f.dims
	out := make([][]float32, n)
	for h := 0; h < n; h++ {
		v := make([]float32, f.dims)
		copy(v, f.data[h*f.dims:(h+1)*f.dims])
		out[h] = v
	}
	return out
}

// sortHits orders hits by ascending distance, breaking ties by handle.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Handle < hits[j].Handle
	})
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
