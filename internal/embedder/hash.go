package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimensions is the vector length used by [Hash] when none is
// configured.
const DefaultHashDimensions = 256

// Hash is a deterministic, offline embedder based on the hashing trick.
// Each lower-cased token is hashed with FNV-1a into one of Dimensions
// buckets with a hash-derived sign, and the result is L2-normalised.
//
// It has no notion of meaning beyond shared vocabulary, but it needs no
// model download or network access, so it is the default backend for local
// use and the embedder used throughout the tests.
type Hash struct {
	dims int
}

// NewHash returns a Hash embedder producing vectors of length dims.
// A non-positive dims selects [DefaultHashDimensions].
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &Hash{dims: dims}
}

// Dimensions implements [Provider].
func (h *Hash) Dimensions() int { return h.dims }

// Embed implements [Provider]. Text with no tokens maps to the zero vector.
func (h *Hash) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embedOne(text)
	}
	return out, nil
}

func (h *Hash) embedOne(text string) []float32 {
	vec := make([]float32, h.dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		f := fnv.New32a()
		f.Write([]byte(tok)) //nolint:errcheck // hash.Hash never errors
		sum := f.Sum32()
		idx := int(sum % uint32(h.dims))
		if sum&(1<<31) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
