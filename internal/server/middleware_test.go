package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
)

func TestRequestLogger_RecoversPanic(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	h := requestLogger(logging.NewWithWriter(&logs, "info", "json"), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("want 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "internal error") {
		t.Errorf("want a JSON error body, got %q", w.Body.String())
	}
	if !strings.Contains(logs.String(), "handler panic") {
		t.Errorf("want the panic logged, got %q", logs.String())
	}
}

func TestRequestLogger_RequestID(t *testing.T) {
	t.Parallel()

	var seen string
	h := requestLogger(logging.Discard(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get(requestIDHeader)
		_, _ = w.Write([]byte("ok"))
	}))

	tests := []struct {
		name   string
		sent   string
		reused bool
	}{
		{"generated", "", false},
		{"client value", "abc-123", true},
		{"too long", strings.Repeat("x", maxRequestIDLen+1), false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.sent != "" {
			req.Header.Set(requestIDHeader, tt.sent)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		got := w.Header().Get(requestIDHeader)
		if got == "" || got != seen {
			t.Errorf("%s: want the same non-empty id in the handler and response, got %q and %q", tt.name, seen, got)
		}
		if (got == tt.sent) != tt.reused {
			t.Errorf("%s: reused=%v, got id %q", tt.name, tt.reused, got)
		}
	}
}
