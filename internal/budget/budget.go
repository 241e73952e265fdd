// Package budget provides token budget estimation and context trimming for
// the answering pipeline. Because StudyMate supports several LLM backends
// with different tokenizers, this package uses a conservative
// character-based heuristic: 1 token ≈ 4 characters.
package budget

import (
	"github.com/cloudwego/eino/schema"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input budget in tokens. It fits
	// 8k-context models while leaving room for the answer. Override via
	// MAX_CONTEXT_TOKENS.
	DefaultMaxContextTokens = 6000

	// messageOverhead is the per-message framing cost most chat APIs charge.
	messageOverhead = 4
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// FitResults drops the least similar search results until the rendered
// context plus fixedTokens fits within maxTokens. results must be ordered
// most similar first; render is the function that turns them into the
// context string (normally citation.BuildContext).
//
// The returned slice is a prefix of results and may be empty if even one
// block is over budget.
func FitResults(results []rag.SearchResult, render func([]rag.SearchResult) string, fixedTokens, maxTokens int) []rag.SearchResult {
	for len(results) > 0 {
		if fixedTokens+Estimate(render(results)) <= maxTokens {
			break
		}
		results = results[:len(results)-1]
	}
	return results
}
