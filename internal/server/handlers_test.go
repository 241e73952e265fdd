package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/assistant"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/citation"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/generate"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/passage"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
)

// do sends a request with an optional JSON body through the full handler
// chain and returns the recorder.
func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	return w
}

func TestHandleIngest_SingleAndBatch(t *testing.T) {
	t.Parallel()

	lib := &fakeLibrary{failNames: map[string]bool{"Broken.pdf": true}}
	persisted := 0
	s := newTestServer(t, lib, nil, func(c *Config) {
		c.Persist = func(context.Context) error { persisted++; return nil }
	})

	body := `{
		"name": "Bio.pdf",
		"pages": [{"number": 1, "text": "cells divide"}, {"text": "by mitosis"}],
		"documents": [{"name": "Broken.pdf", "pages": [{"number": 1, "text": "x"}]}]
	}`
	w := do(t, s, http.MethodPost, "/api/documents", body)
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d, body: %s", w.Code, w.Body.String())
	}

	var resp ingestResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Ingested) != 1 || resp.Ingested[0] != "Bio.pdf" {
		t.Errorf("ingested: want [Bio.pdf], got %v", resp.Ingested)
	}
	if len(resp.Failures) != 1 || resp.Failures[0].Document != "Broken.pdf" {
		t.Errorf("failures: want Broken.pdf, got %+v", resp.Failures)
	}
	if persisted != 1 {
		t.Errorf("want persist called once, got %d", persisted)
	}

	if len(lib.ingested) != 1 {
		t.Fatalf("want 1 stored document, got %d", len(lib.ingested))
	}
	doc := lib.ingested[0]
	if doc.Pages[1].Number != 2 {
		t.Errorf("unnumbered page: want number 2, got %d", doc.Pages[1].Number)
	}
	if want := int64(len("cells divide") + len("by mitosis")); doc.SizeBytes != want {
		t.Errorf("size: want %d, got %d", want, doc.SizeBytes)
	}
}

func TestHandleIngest_RepeatedNameFailsOnce(t *testing.T) {
	t.Parallel()

	lib := &fakeLibrary{failAt: map[int]bool{1: true}}
	persisted := 0
	s := newTestServer(t, lib, nil, func(c *Config) {
		c.Persist = func(context.Context) error { persisted++; return nil }
	})

	body := `{"documents": [
		{"name": "Notes.txt", "pages": [{"text": "first copy"}]},
		{"name": "Notes.txt", "pages": [{"text": "second copy"}]}
	]}`
	w := do(t, s, http.MethodPost, "/api/documents", body)
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d, body: %s", w.Code, w.Body.String())
	}

	var resp ingestResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Ingested) != 1 || resp.Ingested[0] != "Notes.txt" {
		t.Errorf("ingested: want [Notes.txt], got %v", resp.Ingested)
	}
	if len(resp.Failures) != 1 {
		t.Errorf("failures: want 1, got %+v", resp.Failures)
	}
	if persisted != 1 {
		t.Errorf("want persist called once, got %d", persisted)
	}
}

func TestHandleIngest_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"name":`},
		{"no documents", `{}`},
		{"unnamed batch entry", `{"documents":[{"pages":[{"text":"x"}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t, nil, nil, nil)
			if w := do(t, s, http.MethodPost, "/api/documents", tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("want 400, got %d, body: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleIngest_BodyTooLarge(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, nil, func(c *Config) { c.MaxBodyBytes = 64 })
	body := fmt.Sprintf(`{"name":"big.txt","pages":[{"text":%q}]}`, strings.Repeat("word ", 100))
	if w := do(t, s, http.MethodPost, "/api/documents", body); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("want 413, got %d", w.Code)
	}
}

func TestHandleClear(t *testing.T) {
	t.Parallel()

	lib := &fakeLibrary{}
	s := newTestServer(t, lib, nil, nil)

	if w := do(t, s, http.MethodDelete, "/api/documents", ""); w.Code != http.StatusNoContent {
		t.Fatalf("want 204, got %d", w.Code)
	}
	if !lib.cleared {
		t.Error("want library cleared")
	}
}

func TestHandleSearch(t *testing.T) {
	t.Parallel()

	lib := &fakeLibrary{results: []rag.SearchResult{{
		Passage:    passage.Passage{DocumentName: "Bio.pdf", PageNumber: 3, MinPage: 3, MaxPage: 4, SequenceIndex: 7, Text: "mitosis"},
		Distance:   0.25,
		Similarity: rag.Similarity(0.25),
	}}}
	s := newTestServer(t, lib, nil, nil)

	w := do(t, s, http.MethodPost, "/api/search", `{"query":"mitosis","top_k":3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d, body: %s", w.Code, w.Body.String())
	}
	var resp searchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("want 1 result, got %d", len(resp.Results))
	}
	got := resp.Results[0]
	if got.Document != "Bio.pdf" || got.Page != 3 || got.MaxPage != 4 || got.Chunk != 7 {
		t.Errorf("unexpected result body: %+v", got)
	}
	if got.Similarity != 0.8 {
		t.Errorf("similarity: want 0.8, got %v", got.Similarity)
	}
}

func TestHandleSearch_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		lib  *fakeLibrary
		body string
		want int
	}{
		{"missing query", &fakeLibrary{}, `{"top_k":3}`, http.StatusBadRequest},
		{"zero top_k", &fakeLibrary{}, `{"query":"q","top_k":0}`, http.StatusBadRequest},
		{"backend failure", &fakeLibrary{searchErr: errors.New("qdrant down")}, `{"query":"q","top_k":1}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t, tt.lib, nil, nil)
			w := do(t, s, http.MethodPost, "/api/search", tt.body)
			if w.Code != tt.want {
				t.Errorf("want %d, got %d, body: %s", tt.want, w.Code, w.Body.String())
			}
			if strings.Contains(w.Body.String(), "qdrant down") {
				t.Error("internal error detail leaked to client")
			}
		})
	}
}

func TestHandleAsk(t *testing.T) {
	t.Parallel()

	ask := &fakeAsker{resp: &assistant.Response{
		Question:   "what is mitosis?",
		Answer:     generate.Answer{Success: true, Text: "Cell division [Bio.pdf p.3].", Model: "test-model", TokensUsed: 42},
		Citations:  []citation.Citation{{DocumentName: "Bio.pdf", PageNumber: 3, Count: 1}},
		Unresolved: []citation.Citation{{DocumentName: "Ghost.pdf", PageNumber: 9, Count: 1}},
	}}
	s := newTestServer(t, nil, ask, nil)

	w := do(t, s, http.MethodPost, "/api/ask", `{"question":"what is mitosis?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d, body: %s", w.Code, w.Body.String())
	}
	var resp askResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Model != "test-model" || resp.TokensUsed != 42 {
		t.Errorf("unexpected model/tokens: %+v", resp)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].Marker != "[Bio.pdf p.3]" {
		t.Errorf("citations: got %+v", resp.Citations)
	}
	if len(resp.Unresolved) != 1 || resp.Unresolved[0].Document != "Ghost.pdf" {
		t.Errorf("unresolved: got %+v", resp.Unresolved)
	}
	if resp.Sources == nil {
		t.Error("sources: want empty array, got null")
	}
}

func TestHandleAsk_RateLimited(t *testing.T) {
	t.Parallel()

	ask := &fakeAsker{err: fmt.Errorf("assistant: %w", &generate.RateLimitExceeded{Attempts: 3, Cause: errors.New("429")})}
	s := newTestServer(t, nil, ask, nil)

	w := do(t, s, http.MethodPost, "/api/ask", `{"question":"q"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("want 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "16" {
		t.Errorf("Retry-After: want 16, got %q", got)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *generate.RateLimitExceeded
		want int
	}{
		{"default delay", &generate.RateLimitExceeded{Attempts: 3}, 16},
		{"configured delay", &generate.RateLimitExceeded{Attempts: 3, RetryDelay: 5 * time.Second}, 40},
		{"sub-second rounds up", &generate.RateLimitExceeded{Attempts: 1, RetryDelay: 300 * time.Millisecond}, 1},
		{"partial second rounds up", &generate.RateLimitExceeded{Attempts: 2, RetryDelay: 1500 * time.Millisecond}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := retryAfterSeconds(tt.err); got != tt.want {
				t.Errorf("want %d, got %d", tt.want, got)
			}
		})
	}
}

func TestHandleAsk_NoGenerator(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, nil, nil)
	if w := do(t, s, http.MethodPost, "/api/ask", `{"question":"q"}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("want 503, got %d", w.Code)
	}
}

func TestHandleStats(t *testing.T) {
	t.Parallel()

	lib := &fakeLibrary{}
	lib.IngestAll(context.Background(), []rag.Document{{Name: "a"}, {Name: "b"}})
	s := newTestServer(t, lib, nil, nil)

	w := do(t, s, http.MethodGet, "/api/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	var stats rag.Stats
	if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalDocuments != 2 {
		t.Errorf("want 2 documents, got %d", stats.TotalDocuments)
	}
}

func TestServer_AuthAndRequestID(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, nil, func(c *Config) { c.APIKey = "secret" })

	if w := do(t, s, http.MethodGet, "/api/stats", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("/api/stats without token: want 401, got %d", w.Code)
	}
	w := do(t, s, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Errorf("/healthz must stay open: want 200, got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("want X-Request-Id on every response")
	}

	r := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	r.Header.Set("Authorization", "Bearer secret")
	r.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Errorf("with token: want 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request id: want client value abc-123, got %q", got)
	}
}
