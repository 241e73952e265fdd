// Package embedder turns passages and queries into fixed-length vectors.
//
// Every backend implements [Provider]. A provider's dimension is fixed when
// it is constructed and never changes; the vector index rejects anything
// else. Batch calls are all-or-nothing: a failure for one text fails the
// whole call and no partial result is returned.
package embedder

import "context"

// Provider converts text into dense vector embeddings.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions reports the length of every vector Embed returns.
	Dimensions() int
}
