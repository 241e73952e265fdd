package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PGVectorConfig holds connection parameters for a Postgres/pgvector index.
type PGVectorConfig struct {
	// ConnString is a libpq-style connection string or URL.
	ConnString string

	// Table is the table that stores handles and vectors (default: studymate_vectors).
	Table string

	// Dimensions is the vector length of the embedding column.
	Dimensions int
}

// PGVector implements [Index] on a Postgres table with a pgvector column.
// No ANN index is created, so `ORDER BY embedding <-> $1` is an exact scan.
// Like [Qdrant], the table is emptied when the index is opened.
type PGVector struct {
	pool  *pgxpool.Pool
	table string
	dims  int

	mu   sync.Mutex
	next int
}

// NewPGVector connects to Postgres, ensures the extension and table exist,
// and empties the table.
func NewPGVector(ctx context.Context, cfg PGVectorConfig) (*PGVector, error) {
	if cfg.Table == "" {
		cfg.Table = "studymate_vectors"
	}
	if cfg.Dimensions <= 0 {
		return nil, &InvalidArgumentError{Param: "dimensions", Value: cfg.Dimensions, Reason: "must be positive"}
	}

	pool, err := pgxpool.New(ctx, cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("index: pgvector connect: %w", err)
	}

	p := &PGVector{
		pool:  pool,
		table: pgx.Identifier{cfg.Table}.Sanitize(),
		dims:  cfg.Dimensions,
	}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *PGVector) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			handle    BIGINT PRIMARY KEY,
			embedding vector(%d) NOT NULL
		)`, p.table, p.dims),
		fmt.Sprintf(`TRUNCATE %s`, p.table),
	}
	for _, s := range stmts {
		if _, err := p.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("index: pgvector migrate: %w", err)
		}
	}
	return nil
}

// Dimensions implements [Index].
func (p *PGVector) Dimensions() int { return p.dims }

// Size implements [Index].
func (p *PGVector) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}

// Add implements [Index]. All rows are inserted in one transaction.
func (p *PGVector) Add(ctx context.Context, vecs [][]float32) ([]int64, error) {
	if err := checkDims(p.dims, vecs...); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("index: pgvector begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	stmt := fmt.Sprintf(`INSERT INTO %s (handle, embedding) VALUES ($1, $2)`, p.table)
	handles := make([]int64, len(vecs))
	for i, v := range vecs {
		h := int64(p.next + i)
		if _, err := tx.Exec(ctx, stmt, h, pgvector.NewVector(v)); err != nil {
			return nil, fmt.Errorf("index: pgvector insert handle %d: %w", h, err)
		}
		handles[i] = h
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("index: pgvector commit: %w", err)
	}

	p.next += len(vecs)
	return handles, nil
}

// Search implements [Index]. pgvector's <-> operator is the Euclidean
// distance, so results are squared to match [Flat].
func (p *PGVector) Search(ctx context.Context, q []float32, k int) ([]Hit, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	if err := checkDims(p.dims, q); err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, fmt.Sprintf(
		`SELECT handle, (embedding <-> $1)::real FROM %s ORDER BY embedding <-> $1, handle LIMIT $2`, p.table),
		pgvector.NewVector(q), k,
	)
	if err != nil {
		return nil, fmt.Errorf("index: pgvector search: %w", err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var (
			h    int64
			dist float32
		)
		if err := rows.Scan(&h, &dist); err != nil {
			return nil, fmt.Errorf("index: pgvector scan: %w", err)
		}
		hits = append(hits, Hit{Handle: h, Distance: dist * dist})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: pgvector rows: %w", err)
	}
	sortHits(hits)
	return hits, nil
}

// Truncate implements [Index].
func (p *PGVector) Truncate(ctx context.Context, n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n < 0 || n > p.next {
		return fmt.Errorf("index: truncate to %d out of range [0, %d]", n, p.next)
	}
	if _, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE handle >= $1`, p.table), int64(n)); err != nil {
		return fmt.Errorf("index: pgvector truncate: %w", err)
	}
	p.next = n
	return nil
}

// Clear implements [Index].
func (p *PGVector) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, p.table)); err != nil {
		return fmt.Errorf("index: pgvector clear: %w", err)
	}
	p.next = 0
	return nil
}

// Ping checks that Postgres is reachable.
func (p *PGVector) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("index: pgvector ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *PGVector) Close() error {
	p.pool.Close()
	return nil
}
