// Package store persists the StudyMate library to a local SQLite database so
// that ingested documents survive restarts. The in-memory retriever stays the
// source of truth while running; the store holds a snapshot of it that is
// written after every change and read once at startup.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/passage"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
)

// SQLiteStore holds one library snapshot in a SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the library database.
// It resolves to ~/.studymate/library.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".studymate")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "library.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("store: create directory for %s: %w", path, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection avoids SQLITE_BUSY and keeps ":memory:" databases
	// from splitting across connections.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
    name         TEXT    PRIMARY KEY,
    total_chunks INTEGER NOT NULL,
    total_words  INTEGER NOT NULL,
    size_bytes   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS passages (
    id         INTEGER PRIMARY KEY,
    document   TEXT    NOT NULL,
    page       INTEGER NOT NULL,
    min_page   INTEGER NOT NULL,
    max_page   INTEGER NOT NULL,
    seq        INTEGER NOT NULL,
    text       TEXT    NOT NULL,
    word_count INTEGER NOT NULL,
    vector     BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_passages_document ON passages (document);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Save replaces the stored snapshot with snap in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap rag.Snapshot) (err error) {
	if len(snap.Passages) != len(snap.Vectors) {
		return fmt.Errorf("store: save: %d passages but %d vectors", len(snap.Passages), len(snap.Vectors))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: save: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, q := range []string{"DELETE FROM passages", "DELETE FROM documents", "DELETE FROM meta"} {
		if _, err = tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("store: save: clear: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('dimensions', ?)`, strconv.Itoa(snap.Dimensions)); err != nil {
		return fmt.Errorf("store: save: meta: %w", err)
	}

	docStmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (name, total_chunks, total_words, size_bytes) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: save: prepare documents: %w", err)
	}
	defer docStmt.Close()
	for name, d := range snap.Documents {
		if _, err = docStmt.ExecContext(ctx, name, d.TotalChunks, d.TotalWords, d.SourceSizeBytes); err != nil {
			return fmt.Errorf("store: save: document %q: %w", name, err)
		}
	}

	passStmt, err := tx.PrepareContext(ctx, `
INSERT INTO passages (id, document, page, min_page, max_page, seq, text, word_count, vector)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: save: prepare passages: %w", err)
	}
	defer passStmt.Close()
	for i, p := range snap.Passages {
		if _, err = passStmt.ExecContext(ctx,
			p.ID, p.DocumentName, p.PageNumber, p.MinPage, p.MaxPage,
			p.SequenceIndex, p.Text, p.WordCount, encodeVector(snap.Vectors[i]),
		); err != nil {
			return fmt.Errorf("store: save: passage %d: %w", p.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: save: commit: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. An empty database yields an empty
// snapshot with Dimensions 0.
func (s *SQLiteStore) Load(ctx context.Context) (rag.Snapshot, error) {
	snap := rag.Snapshot{Documents: make(passage.DocumentMapping)}

	var dims string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'dimensions'`).Scan(&dims)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return rag.Snapshot{}, fmt.Errorf("store: load: meta: %w", err)
	default:
		if snap.Dimensions, err = strconv.Atoi(dims); err != nil {
			return rag.Snapshot{}, fmt.Errorf("store: load: bad dimensions %q: %w", dims, err)
		}
	}

	docRows, err := s.db.QueryContext(ctx, `SELECT name, total_chunks, total_words, size_bytes FROM documents`)
	if err != nil {
		return rag.Snapshot{}, fmt.Errorf("store: load: documents: %w", err)
	}
	defer docRows.Close()
	for docRows.Next() {
		var (
			name string
			d    passage.DocumentStats
		)
		if err := docRows.Scan(&name, &d.TotalChunks, &d.TotalWords, &d.SourceSizeBytes); err != nil {
			return rag.Snapshot{}, fmt.Errorf("store: load: document scan: %w", err)
		}
		snap.Documents[name] = d
	}
	if err := docRows.Err(); err != nil {
		return rag.Snapshot{}, fmt.Errorf("store: load: document rows: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, document, page, min_page, max_page, seq, text, word_count, vector
FROM   passages
ORDER  BY id ASC`)
	if err != nil {
		return rag.Snapshot{}, fmt.Errorf("store: load: passages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p   passage.Passage
			raw []byte
		)
		if err := rows.Scan(&p.ID, &p.DocumentName, &p.PageNumber, &p.MinPage, &p.MaxPage,
			&p.SequenceIndex, &p.Text, &p.WordCount, &raw); err != nil {
			return rag.Snapshot{}, fmt.Errorf("store: load: passage scan: %w", err)
		}
		vec, err := decodeVector(raw)
		if err != nil {
			return rag.Snapshot{}, fmt.Errorf("store: load: passage %d: %w", p.ID, err)
		}
		snap.Passages = append(snap.Passages, p)
		snap.Vectors = append(snap.Vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return rag.Snapshot{}, fmt.Errorf("store: load: passage rows: %w", err)
	}
	return snap, nil
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// encodeVector converts a float32 slice to little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector converts little-endian bytes back to a float32 slice.
func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector blob of %d bytes is not a multiple of 4", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}
