package index

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Backend names accepted by VECTOR_BACKEND.
const (
	BackendFlat     = "flat"
	BackendQdrant   = "qdrant"
	BackendPGVector = "pgvector"
)

// Backend resolves the index backend from VECTOR_BACKEND, defaulting to the
// in-memory flat index.
func Backend() string {
	if v := os.Getenv("VECTOR_BACKEND"); v != "" {
		return strings.ToLower(v)
	}
	return BackendFlat
}

// NewFromEnv constructs an [Index] with the given dimension for the backend
// named by VECTOR_BACKEND:
//
//	flat     in-memory exact search (default)
//	qdrant   QDRANT_HOST, QDRANT_PORT, QDRANT_COLLECTION, QDRANT_API_KEY, QDRANT_TLS
//	pgvector PGVECTOR_URL, PGVECTOR_TABLE
func NewFromEnv(ctx context.Context, dims int) (Index, error) {
	switch backend := Backend(); backend {
	case BackendFlat:
		f, err := NewFlat(dims)
		if err != nil {
			return nil, err
		}
		return f, nil

	case BackendQdrant:
		port, _ := strconv.Atoi(os.Getenv("QDRANT_PORT"))
		q, err := NewQdrant(ctx, QdrantConfig{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       port,
			Collection: os.Getenv("QDRANT_COLLECTION"),
			Dimensions: dims,
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     strings.EqualFold(os.Getenv("QDRANT_TLS"), "true"),
		})
		if err != nil {
			return nil, err
		}
		return q, nil

	case BackendPGVector:
		url := os.Getenv("PGVECTOR_URL")
		if url == "" {
			return nil, fmt.Errorf("index: pgvector requires PGVECTOR_URL")
		}
		p, err := NewPGVector(ctx, PGVectorConfig{
			ConnString: url,
			Table:      os.Getenv("PGVECTOR_TABLE"),
			Dimensions: dims,
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, fmt.Errorf("index: unknown backend %q, valid values: flat, qdrant, pgvector", backend)
	}
}
