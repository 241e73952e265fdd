// Package server implements the HTTP API that exposes a StudyMate library:
// document upload, similarity search, cited question answering and
// statistics, plus liveness, readiness and Prometheus endpoints.
// The server is started by the `studymate serve` CLI command.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
)

// defaultMaxBodyBytes caps upload size when Config.MaxBodyBytes is zero.
const defaultMaxBodyBytes = 32 << 20

// New constructs a Server over lib and ask. ask may be nil, in which case
// POST /api/ask responds 503.
func New(lib library, ask asker, cfg *Config) (*Server, error) {
	if lib == nil {
		return nil, fmt.Errorf("server: library must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(cfg.MetricsRegistry)
	}

	s := &Server{
		lib:     lib,
		asker:   ask,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: metrics,
	}

	limiter, stopRL := newClientLimiter(cfg.RateLimit, cfg.RateBurst, cfg.TrustForwardedFor)
	limiter.onReject = metrics.RequestRateLimited
	s.stopRL = stopRL

	// api protects and instruments one /api route.
	api := func(handler string, cost int, h http.HandlerFunc) http.Handler {
		return s.instrument(handler, requireAPIKey(cfg.APIKey, limiter.limit(handler, cost, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/documents", api("documents_ingest", costIngest, s.handleIngest))
	mux.Handle("DELETE /api/documents", api("documents_clear", costRead, s.handleClear))
	mux.Handle("POST /api/search", api("search", costRead, s.handleSearch))
	mux.Handle("POST /api/ask", api("ask", costAsk, s.handleAsk))
	mux.Handle("GET /api/stats", api("stats", costRead, s.handleStats))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	if cfg.APIKey == "" {
		log.Warn("server: STUDYMATE_API_KEY not set, API authentication disabled")
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler. Tests drive it with httptest.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.log.Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// Close stops background goroutines without serving. Used when a Server is
// built but never started, e.g. in tests.
func (s *Server) Close() { s.stopRL() }
