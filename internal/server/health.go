package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
)

// probeTimeout bounds each dependency probe in GET /readyz.
const probeTimeout = 5 * time.Second

// Pinger reports whether one dependency is reachable. Ping must be safe for
// concurrent use.
type Pinger interface {
	Ping(ctx context.Context) error
	// Name labels the dependency in /readyz, e.g. "embedder" or "qdrant".
	Name() string
}

// probeResult is the outcome of one Pinger.
type probeResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// readiness is the body of GET /readyz.
type readiness struct {
	Ready  bool          `json:"ready"`
	Checks []probeResult `json:"checks"`
	// Documents and Passages summarise what the server can answer from.
	Documents int `json:"documents"`
	Passages  int `json:"passages"`
}

// handleHealth handles GET /healthz. It only reports that the process is up.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady handles GET /readyz. Every Pinger runs concurrently; the
// response is 503 if any of them fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results := probeAll(r.Context(), s.pingers)

	stats := s.lib.Statistics()
	body := readiness{
		Ready:     true,
		Checks:    results,
		Documents: stats.TotalDocuments,
		Passages:  stats.TotalChunks,
	}

	log := logging.FromContext(r.Context())
	for _, res := range results {
		if !res.OK {
			body.Ready = false
			log.Warn("readiness probe failed",
				slog.String("dependency", res.Name),
				slog.String("error", res.Error),
			)
		}
	}

	status := http.StatusOK
	if !body.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

// probeAll pings every dependency in parallel and returns the results in
// the order of pingers.
func probeAll(ctx context.Context, pingers []Pinger) []probeResult {
	results := make([]probeResult, len(pingers))

	var wg sync.WaitGroup
	for i, p := range pingers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(pctx)
			results[i] = probeResult{
				Name:      p.Name(),
				OK:        err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				results[i].Error = err.Error()
			}
		}()
	}
	wg.Wait()

	return results
}
