package index

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/qdrant/go-client/qdrant"
)

// handleField is the payload key that mirrors a point's numeric id so that
// truncation can delete by range.
const handleField = "handle"

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name (default: studymate).
	Collection string

	// Dimensions is the vector length stored in the collection.
	Dimensions int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// qdrantAPI is the subset of [*qdrant.Client] the index uses.
type qdrantAPI interface {
	CollectionExists(ctx context.Context, collection string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collection string) error
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	Close() error
}

// Qdrant implements [Index] on a Qdrant collection using Euclidean distance
// and exact (non-HNSW) search. The collection is session-scoped: it is
// recreated empty when the index is opened, because passage text lives in
// memory and only the vectors would otherwise survive a restart.
type Qdrant struct {
	client qdrantAPI
	cfg    QdrantConfig

	mu   sync.Mutex
	next int
}

// NewQdrant connects to Qdrant and (re)creates an empty collection.
func NewQdrant(ctx context.Context, cfg QdrantConfig) (*Qdrant, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "studymate"
	}
	if cfg.Dimensions <= 0 {
		return nil, &InvalidArgumentError{Param: "dimensions", Value: cfg.Dimensions, Reason: "must be positive"}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("index: qdrant client: %w", err)
	}

	q, err := newQdrant(ctx, client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	return q, nil
}

func newQdrant(ctx context.Context, api qdrantAPI, cfg QdrantConfig) (*Qdrant, error) {
	q := &Qdrant{client: api, cfg: cfg}
	if err := q.resetCollection(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// resetCollection drops the collection if present and creates it empty.
func (q *Qdrant) resetCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.cfg.Collection)
	if err != nil {
		return fmt.Errorf("index: qdrant: check collection %q: %w", q.cfg.Collection, err)
	}
	if exists {
		if err := q.client.DeleteCollection(ctx, q.cfg.Collection); err != nil {
			return fmt.Errorf("index: qdrant: drop collection %q: %w", q.cfg.Collection, err)
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.cfg.Dimensions),
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("index: qdrant: create collection %q: %w", q.cfg.Collection, err)
	}
	return nil
}

// Dimensions implements [Index].
func (q *Qdrant) Dimensions() int { return q.cfg.Dimensions }

// Size implements [Index].
func (q *Qdrant) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.next
}

// Add implements [Index].
func (q *Qdrant) Add(ctx context.Context, vecs [][]float32) ([]int64, error) {
	if err := checkDims(q.cfg.Dimensions, vecs...); err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return []int64{}, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	handles := make([]int64, len(vecs))
	points := make([]*qdrant.PointStruct, len(vecs))
	for i, v := range vecs {
		h := int64(q.next + i)
		handles[i] = h
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(h)),
			Vectors: qdrant.NewVectors(v...),
			Payload: map[string]*qdrant.Value{handleField: qdrant.NewValueInt(h)},
		}
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		// Part of the batch may have been written before the error.
		if derr := q.deleteFrom(context.WithoutCancel(ctx), q.next); derr != nil {
			return nil, errors.Join(fmt.Errorf("index: qdrant upsert: %w", err), derr)
		}
		return nil, fmt.Errorf("index: qdrant upsert: %w", err)
	}

	q.next += len(vecs)
	return handles, nil
}

// Search implements [Index]. Qdrant reports Euclidean distance, so scores
// are squared to match [Flat].
func (q *Qdrant) Search(ctx context.Context, vec []float32, k int) ([]Hit, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	if err := checkDims(q.cfg.Dimensions, vec); err != nil {
		return nil, err
	}
	if q.Size() == 0 {
		return []Hit{}, nil
	}

	limit := uint64(k)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.Collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		Params:         &qdrant.SearchParams{Exact: qdrant.PtrOf(true)},
	})
	if err != nil {
		return nil, fmt.Errorf("index: qdrant query: %w", err)
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, Hit{
			Handle:   int64(p.GetId().GetNum()),
			Distance: p.GetScore() * p.GetScore(),
		})
	}
	sortHits(hits)
	return hits, nil
}

// Truncate implements [Index]. Points with handle >= n are deleted even
// when n equals Size, so leftovers of a failed Add are removed too.
func (q *Qdrant) Truncate(ctx context.Context, n int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n < 0 || n > q.next {
		return fmt.Errorf("index: truncate to %d out of range [0, %d]", n, q.next)
	}
	if err := q.deleteFrom(ctx, n); err != nil {
		return err
	}
	q.next = n
	return nil
}

// deleteFrom removes every point whose handle is at least n.
func (q *Qdrant) deleteFrom(ctx context.Context, n int) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewRange(handleField, &qdrant.Range{Gte: qdrant.PtrOf(float64(n))}),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("index: qdrant delete from %d: %w", n, err)
	}
	return nil
}

// Clear implements [Index].
func (q *Qdrant) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.resetCollection(ctx); err != nil {
		return err
	}
	q.next = 0
	return nil
}

// Ping checks that the Qdrant server is reachable.
func (q *Qdrant) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("index: qdrant health check: %w", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}
