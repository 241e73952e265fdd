package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/audit"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/citation"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/generate"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/index"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/segment"
)

// handleIngest handles POST /api/documents. Documents are ingested one at a
// time; a failed document is reported in the response and does not fail
// the request.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !s.decode(w, r, &req) {
		return
	}

	bodies := req.Documents
	if req.Name != "" || len(req.Pages) > 0 {
		bodies = append([]documentBody{req.documentBody}, bodies...)
	}
	if len(bodies) == 0 {
		writeError(w, http.StatusBadRequest, "at least one document is required")
		return
	}

	docs := make([]rag.Document, 0, len(bodies))
	for i, b := range bodies {
		if b.Name == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("documents[%d]: name is required", i))
			return
		}
		doc := rag.Document{Name: b.Name, SizeBytes: b.SizeBytes}
		for j, p := range b.Pages {
			n := p.Number
			if n <= 0 {
				n = j + 1
			}
			doc.Pages = append(doc.Pages, segment.Page{Number: n, Text: p.Text})
			if b.SizeBytes == 0 {
				doc.SizeBytes += int64(len(p.Text))
			}
		}
		docs = append(docs, doc)
	}

	failures := s.lib.IngestAll(r.Context(), docs)
	resp := ingestResponse{Ingested: rag.Succeeded(docs, failures), Failures: []ingestFailure{}}
	for _, f := range failures {
		resp.Failures = append(resp.Failures, ingestFailure{Document: f.DocumentName, Error: f.Cause.Error()})
	}

	if len(resp.Ingested) > 0 {
		audit.LogLibraryChange(r.Context(), logging.FromContext(r.Context()), "ingest", resp.Ingested, s.lib.Statistics().TotalChunks)
		s.persist(r)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleClear handles DELETE /api/documents.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.lib.Clear(r.Context()); err != nil {
		s.writeErr(w, r, err)
		return
	}
	audit.LogLibraryChange(r.Context(), logging.FromContext(r.Context()), "clear", nil, 0)
	s.persist(r)
	w.WriteHeader(http.StatusNoContent)
}

// handleSearch handles POST /api/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := s.lib.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: toResultBodies(results)})
}

// handleAsk handles POST /api/ask.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.asker == nil {
		writeError(w, http.StatusServiceUnavailable, "no generation service configured")
		return
	}
	var req askRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.TopK < 0 {
		writeError(w, http.StatusBadRequest, "top_k must not be negative")
		return
	}

	res, err := s.asker.Ask(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:     res.Answer.Text,
		Model:      res.Answer.Model,
		TokensUsed: res.Answer.TokensUsed,
		Citations:  toCiteBodies(res.Citations),
		Unresolved: toCiteBodies(res.Unresolved),
		Sources:    toResultBodies(res.Sources),
	})
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.lib.Statistics())
}

// persist runs the configured persistence hook. A failure is logged but
// does not fail the request: the in-memory library already changed.
func (s *Server) persist(r *http.Request) {
	if s.cfg.Persist == nil {
		return
	}
	if err := s.cfg.Persist(r.Context()); err != nil {
		logging.FromContext(r.Context()).Error("server: persist library failed", slog.Any("error", err))
	}
}

// decode reads a JSON body into v, writing 400 or 413 and returning false
// on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeErr maps a pipeline error to an HTTP status.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalid   *index.InvalidArgumentError
		cfgErr    *segment.ConfigurationError
		dimErr    *index.DimensionMismatchError
		rateLimit *generate.RateLimitExceeded
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &cfgErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &rateLimit):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rateLimit)))
		writeError(w, http.StatusTooManyRequests, "generation service is rate limited, try again later")
	case errors.As(err, &dimErr):
		logging.FromContext(r.Context()).Error("server: index dimension mismatch", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		logging.FromContext(r.Context()).Error("server: request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// retryAfterSeconds suggests how long a client should wait after the
// generation client gave up: one more doubling of its retry delay, rounded
// up to at least one second.
func retryAfterSeconds(e *generate.RateLimitExceeded) int {
	delay := e.RetryDelay
	if delay <= 0 {
		delay = generate.DefaultRetryDelay
	}
	wait := delay << max(e.Attempts, 1)
	return max(1, int((wait+time.Second-1)/time.Second))
}

func toResultBodies(results []rag.SearchResult) []resultBody {
	out := make([]resultBody, 0, len(results))
	for _, r := range results {
		out = append(out, resultBody{
			Document:   r.Passage.DocumentName,
			Page:       r.Passage.PageNumber,
			MinPage:    r.Passage.MinPage,
			MaxPage:    r.Passage.MaxPage,
			Chunk:      r.Passage.SequenceIndex,
			Text:       r.Passage.Text,
			Distance:   r.Distance,
			Similarity: r.Similarity,
		})
	}
	return out
}

func toCiteBodies(cites []citation.Citation) []citeBody {
	out := make([]citeBody, 0, len(cites))
	for _, c := range cites {
		out = append(out, citeBody{Document: c.DocumentName, Page: c.PageNumber, Count: c.Count, Marker: c.String()})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
