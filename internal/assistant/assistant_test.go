package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/budget"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/citation"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/embedder"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/generate"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/index"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/passage"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/segment"
)

// stubGenerator records the context it was given and replies with answer.
type stubGenerator struct {
	answer  string
	err     error
	context string
}

func (s *stubGenerator) Generate(_ context.Context, _ string, contextBlock string) (generate.Answer, error) {
	s.context = contextBlock
	if s.err != nil {
		return generate.Answer{}, s.err
	}
	return generate.Answer{Success: true, Text: s.answer, Model: "stub"}, nil
}

func newRetriever(t *testing.T) *rag.Retriever {
	t.Helper()
	flat, err := index.NewFlat(64)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	r, err := rag.New(embedder.NewHash(64), flat, passage.NewStore(), segment.DefaultConfig())
	if err != nil {
		t.Fatalf("rag.New: %v", err)
	}
	return r
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(&Config{Generator: &stubGenerator{}}); err == nil {
		t.Error("want error for nil retriever")
	}
	if _, err := New(&Config{Retriever: newRetriever(t)}); err == nil {
		t.Error("want error for nil generator")
	}
}

func TestAsk_ResolvesCitations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRetriever(t)
	_ = r.Ingest(ctx, rag.Document{Name: "Bio.pdf", Pages: []segment.Page{
		{Number: 1, Text: "Cells are the basic unit of life."},
		{Number: 2, Text: "Mitosis produces two identical daughter cells."},
	}})

	gen := &stubGenerator{answer: "Mitosis yields two cells [Bio.pdf p.2]. Also [Made Up.pdf p.4]."}
	a, err := New(&Config{Retriever: r, Generator: gen})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := a.Ask(ctx, "What does mitosis produce?", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.HasPrefix(gen.context, "[Bio.pdf p.1]") {
		t.Errorf("context should start with a citation marker, got %q", gen.context)
	}
	if len(resp.Sources) != 1 {
		t.Errorf("want 1 source passage, got %d", len(resp.Sources))
	}
	if len(resp.Citations) != 1 || resp.Citations[0].DocumentName != "Bio.pdf" {
		t.Errorf("want one resolved Bio.pdf citation, got %+v", resp.Citations)
	}
	if len(resp.Unresolved) != 1 || resp.Unresolved[0].DocumentName != "Made Up.pdf" {
		t.Errorf("want one unresolved citation, got %+v", resp.Unresolved)
	}
}

func TestAsk_EmptyLibraryHasNoContext(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{answer: "General answer."}
	a, _ := New(&Config{Retriever: newRetriever(t), Generator: gen})

	resp, err := a.Ask(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if gen.context != "" || len(resp.Sources) != 0 {
		t.Errorf("want empty context, got %q", gen.context)
	}
}

func TestAsk_BudgetDropsPassages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRetriever(t)
	long := strings.Repeat("photosynthesis ", 200)
	for _, name := range []string{"a", "b", "c"} {
		_ = r.Ingest(ctx, rag.Document{Name: name, Pages: []segment.Page{{Number: 1, Text: long}}})
	}

	gen := &stubGenerator{answer: "ok"}
	a, _ := New(&Config{Retriever: r, Generator: gen, MaxContextTokens: 1200})

	resp, err := a.Ask(ctx, "photosynthesis", 3)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(resp.Sources) != 1 {
		t.Errorf("want budget to keep 1 of 3 passages, got %d", len(resp.Sources))
	}
}

func TestAsk_BudgetCountsGroundedPrompt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRetriever(t)
	_ = r.Ingest(ctx, rag.Document{Name: "a", Pages: []segment.Page{{Number: 1, Text: strings.Repeat("enzymes ", 100)}}})

	const question = "enzymes"
	results, err := r.Search(ctx, question, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	block := budget.Estimate(citation.BuildContext(results))
	framing := budget.EstimateMessages(generate.FramingMessages(question))

	gen := &stubGenerator{answer: "ok"}
	a, _ := New(&Config{Retriever: r, Generator: gen, MaxContextTokens: block + framing - 1})

	resp, err := a.Ask(ctx, question, 1)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("want the passage dropped once the full system prompt is counted, got %d sources", len(resp.Sources))
	}
}

func TestAsk_GeneratorErrorPassesThrough(t *testing.T) {
	t.Parallel()

	limit := &generate.RateLimitExceeded{Attempts: 3, Cause: errors.New("429")}
	a, _ := New(&Config{Retriever: newRetriever(t), Generator: &stubGenerator{err: limit}})

	_, err := a.Ask(context.Background(), "q", 1)
	var rle *generate.RateLimitExceeded
	if !errors.As(err, &rle) {
		t.Errorf("want *generate.RateLimitExceeded, got %v", err)
	}
}
