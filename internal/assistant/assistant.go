// Package assistant answers a student's question end to end: it retrieves
// passages, trims them to the context budget, frames them with citation
// markers, asks the generation service and checks the citations in the
// answer against the passage store.
package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/budget"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/citation"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/generate"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/passage"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
)

// DefaultTopK is the number of passages retrieved when the caller passes 0.
const DefaultTopK = 5

// Retriever is the subset of [*rag.Retriever] the assistant needs.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]rag.SearchResult, error)
	Passages() []passage.Passage
}

// Config holds the dependencies required to construct an Assistant.
type Config struct {
	// Retriever finds passages relevant to the question.
	Retriever Retriever

	// Generator produces the answer text.
	Generator generate.Service

	// TopK is the default number of passages per question. Defaults to
	// DefaultTopK if zero.
	TopK int

	// MaxContextTokens is the estimated token budget for the prompt. The
	// least similar passages are dropped to fit. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Response is everything produced for one question.
type Response struct {
	Question string             `json:"question"`
	Answer   generate.Answer    `json:"answer"`
	Sources  []rag.SearchResult `json:"-"`

	// Citations are markers in the answer that match a stored passage.
	Citations []citation.Citation `json:"citations"`
	// Unresolved are markers that match nothing; shown as a warning.
	Unresolved []citation.Citation `json:"unresolved"`
}

// Assistant runs the question-answering pipeline.
type Assistant struct {
	retriever        Retriever
	generator        generate.Service
	topK             int
	maxContextTokens int
}

// New constructs an Assistant from the provided Config.
func New(cfg *Config) (*Assistant, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("assistant: Retriever must not be nil")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("assistant: Generator must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &Assistant{
		retriever:        cfg.Retriever,
		generator:        cfg.Generator,
		topK:             topK,
		maxContextTokens: maxCtx,
	}, nil
}

// Ask answers question using up to topK passages. topK <= 0 selects the
// configured default. An empty library is not an error: the question is
// answered without context.
func (a *Assistant) Ask(ctx context.Context, question string, topK int) (*Response, error) {
	log := logging.FromContext(ctx)
	if topK <= 0 {
		topK = a.topK
	}

	results, err := a.retriever.Search(ctx, question, topK)
	if err != nil {
		return nil, fmt.Errorf("assistant: search: %w", err)
	}

	fixed := budget.EstimateMessages(generate.FramingMessages(question))
	fitted := budget.FitResults(results, citation.BuildContext, fixed, a.maxContextTokens)
	if dropped := len(results) - len(fitted); dropped > 0 {
		log.Warn("budget: dropped passages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(fitted)),
			slog.Int("max_tokens", a.maxContextTokens),
		)
	}

	ans, err := a.generator.Generate(ctx, question, citation.BuildContext(fitted))
	if err != nil {
		return nil, err
	}

	resp := &Response{Question: question, Answer: ans, Sources: fitted}
	resp.Citations, resp.Unresolved = citation.Resolve(citation.ParseCitations(ans.Text), a.retriever.Passages())
	if len(resp.Unresolved) > 0 {
		log.Warn("answer cites unknown sources", slog.Int("unresolved", len(resp.Unresolved)))
	}
	return resp, nil
}
