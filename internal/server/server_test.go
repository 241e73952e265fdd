package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/assistant"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/index"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/passage"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
)

// fakeLibrary is a test double for the library interface. It records
// ingested documents and returns canned search results.
type fakeLibrary struct {
	mu       sync.Mutex
	ingested []rag.Document
	cleared  bool

	// failNames lists documents IngestAll reports as failed.
	failNames map[string]bool
	// failAt lists batch positions IngestAll reports as failed.
	failAt map[int]bool
	// results is returned by Search.
	results []rag.SearchResult
	// searchErr is returned by Search when set.
	searchErr error
}

func (f *fakeLibrary) IngestAll(_ context.Context, docs []rag.Document) []*rag.IngestionFailure {
	f.mu.Lock()
	defer f.mu.Unlock()
	var failures []*rag.IngestionFailure
	for i, d := range docs {
		if f.failNames[d.Name] || f.failAt[i] {
			failures = append(failures, &rag.IngestionFailure{DocumentName: d.Name, Position: i, Cause: errors.New("embed: boom")})
			continue
		}
		f.ingested = append(f.ingested, d)
	}
	return failures
}

func (f *fakeLibrary) Search(_ context.Context, _ string, topK int) ([]rag.SearchResult, error) {
	if topK <= 0 {
		return nil, &index.InvalidArgumentError{Param: "top_k", Value: topK, Reason: "must be positive"}
	}
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func (f *fakeLibrary) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = true
	f.ingested = nil
	return nil
}

func (f *fakeLibrary) Statistics() rag.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return rag.Stats{TotalDocuments: len(f.ingested), Documents: passage.DocumentMapping{}}
}

// fakeAsker is a test double for the asker interface.
type fakeAsker struct {
	resp *assistant.Response
	err  error
}

func (f *fakeAsker) Ask(context.Context, string, int) (*assistant.Response, error) {
	return f.resp, f.err
}

// newTestServer builds a Server over fakes with an isolated metrics
// registry and a discarding logger. mutate may adjust the Config before
// construction.
func newTestServer(t *testing.T, lib library, ask asker, mutate func(*Config)) *Server {
	t.Helper()
	if lib == nil {
		lib = &fakeLibrary{}
	}
	reg := prometheus.NewRegistry()
	cfg := &Config{
		Logger:          logging.Discard(),
		MetricsRegistry: reg,
		MetricsGatherer: reg,
		RateLimit:       1000,
		RateBurst:       1000,
	}
	if mutate != nil {
		mutate(cfg)
	}
	s, err := New(lib, ask, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestNew_NilLibrary(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil, nil); err == nil {
		t.Fatal("want error for nil library")
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, nil, nil)
	if s.httpServer.Addr != "127.0.0.1:8080" {
		t.Errorf("want default addr 127.0.0.1:8080, got %q", s.httpServer.Addr)
	}
	if s.cfg.MaxBodyBytes != defaultMaxBodyBytes {
		t.Errorf("want default body limit %d, got %d", defaultMaxBodyBytes, s.cfg.MaxBodyBytes)
	}
}
