package commands

import (
	"strings"
	"testing"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/assistant"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/citation"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/generate"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/passage"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
)

func TestPreview(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"short", "one  two\nthree", 5, "one two three"},
		{"exact", "a b c", 3, "a b c"},
		{"cut", "a b c d e", 2, "a b …"},
		{"empty", "", 3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := preview(tt.text, tt.n); got != tt.want {
				t.Errorf("want %q, got %q", tt.want, got)
			}
		})
	}
}

func TestPrintResults(t *testing.T) {
	t.Parallel()

	var empty strings.Builder
	printResults(&empty, nil)
	if !strings.Contains(empty.String(), "No passages found") {
		t.Errorf("want an empty-library hint, got %q", empty.String())
	}

	var out strings.Builder
	printResults(&out, []rag.SearchResult{
		{Passage: passage.Passage{DocumentName: "Biology", MinPage: 3, MaxPage: 3, Text: "mitosis"}, Similarity: 0.9},
		{Passage: passage.Passage{DocumentName: "Chemistry", MinPage: 4, MaxPage: 6, Text: "titration"}, Similarity: 0.5},
	})
	got := out.String()
	for _, want := range []string{"1. ", "Biology", "p.3", "2. ", "Chemistry", "pp.4-6", "0.900", "titration"} {
		if !strings.Contains(got, want) {
			t.Errorf("want output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestPrintStats(t *testing.T) {
	t.Parallel()

	var empty strings.Builder
	printStats(&empty, rag.Stats{})
	if !strings.Contains(empty.String(), "empty") {
		t.Errorf("want an empty-library message, got %q", empty.String())
	}

	var out strings.Builder
	printStats(&out, rag.Stats{
		TotalChunks:        3,
		TotalDocuments:     2,
		EmbeddingDimension: 384,
		IndexSize:          3,
		ChunkSize:          500,
		ChunkOverlap:       100,
		Documents: passage.DocumentMapping{
			"Chemistry": {TotalChunks: 1, TotalWords: 120, SourceSizeBytes: 900},
			"Biology":   {TotalChunks: 2, TotalWords: 640, SourceSizeBytes: 4096},
		},
	})
	got := out.String()
	if strings.Index(got, "Biology") > strings.Index(got, "Chemistry") {
		t.Errorf("want documents sorted by name, got:\n%s", got)
	}
	for _, want := range []string{"2 documents, 3 chunks", "384-dimensional", "500 words with 100 overlap"} {
		if !strings.Contains(got, want) {
			t.Errorf("want output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestPrintAnswer(t *testing.T) {
	t.Parallel()

	var out strings.Builder
	printAnswer(&out, &assistant.Response{
		Answer:     generate.Answer{Success: true, Text: "Chromatids separate [Biology p.2]."},
		Sources:    []rag.SearchResult{{Passage: passage.Passage{DocumentName: "Biology", MinPage: 2, MaxPage: 2}}},
		Citations:  []citation.Citation{{DocumentName: "Biology", PageNumber: 2, Count: 2}},
		Unresolved: []citation.Citation{{DocumentName: "Physics", PageNumber: 9, Count: 1}},
	})
	got := out.String()
	for _, want := range []string{"Chromatids separate", "Sources:", "[Biology p.2] ×2", "not found", "[Physics p.9]"} {
		if !strings.Contains(got, want) {
			t.Errorf("want output to contain %q, got:\n%s", want, got)
		}
	}
	if strings.Contains(got, "not grounded") {
		t.Errorf("grounded answer should not carry the empty-library note, got:\n%s", got)
	}

	var ungrounded strings.Builder
	printAnswer(&ungrounded, &assistant.Response{Answer: generate.Answer{Text: "I don't know."}})
	if !strings.Contains(ungrounded.String(), "not grounded") {
		t.Errorf("want the empty-library note, got:\n%s", ungrounded.String())
	}
}
