package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/assistant"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Addr is the listen address (default: 127.0.0.1:8080).
	Addr string
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// cover a full ingest or generation call including retries.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// MaxBodyBytes caps request bodies (default: 32 MiB).
	MaxBodyBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /readyz.
	// If empty, /readyz returns 200 with no checks.
	Pingers []Pinger
	// RateLimit is the sustained token refill rate per client on /api/*
	// routes (tokens/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the token bucket size per client. Defaults to 20 if zero.
	// A question costs 5 tokens, an upload 4 and anything else 1.
	RateBurst int
	// TrustForwardedFor identifies clients by X-Forwarded-For. Set it only
	// behind a reverse proxy that overwrites the header.
	TrustForwardedFor bool
	// APIKey is the Bearer token required on all /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Metrics receives pipeline and HTTP metrics. If nil, a fresh set is
	// registered against MetricsRegistry.
	Metrics *Metrics
	// MetricsRegistry is where metrics are registered when Metrics is nil.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer serves GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
	// Persist is called after every successful change to the library, e.g.
	// to save a snapshot. Optional.
	Persist func(ctx context.Context) error
}

// library is the subset of [*rag.Retriever] the handlers call.
// Tests inject a fake.
type library interface {
	IngestAll(ctx context.Context, docs []rag.Document) []*rag.IngestionFailure
	Search(ctx context.Context, query string, topK int) ([]rag.SearchResult, error)
	Clear(ctx context.Context) error
	Statistics() rag.Stats
}

// asker is the subset of [*assistant.Assistant] used by POST /api/ask.
type asker interface {
	Ask(ctx context.Context, question string, topK int) (*assistant.Response, error)
}

// Server is the HTTP front end of a StudyMate library.
type Server struct {
	// lib ingests and searches passages.
	lib library
	// asker answers questions with citations.
	asker asker
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /readyz.
	pingers []Pinger
	// metrics holds the Prometheus collectors.
	metrics *Metrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// pageBody is one page of an uploaded document.
type pageBody struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// documentBody is one document in POST /api/documents.
type documentBody struct {
	Name      string     `json:"name"`
	Pages     []pageBody `json:"pages"`
	SizeBytes int64      `json:"size_bytes,omitempty"`
}

// ingestRequest is the JSON body for POST /api/documents. Either a single
// document (Name, Pages) or a batch (Documents) may be sent.
type ingestRequest struct {
	documentBody
	Documents []documentBody `json:"documents"`
}

// ingestFailure reports one document that could not be ingested.
type ingestFailure struct {
	Document string `json:"document"`
	Error    string `json:"error"`
}

// ingestResponse is the JSON response for POST /api/documents.
type ingestResponse struct {
	Ingested []string        `json:"ingested"`
	Failures []ingestFailure `json:"failures"`
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// resultBody is one passage in a search or ask response.
type resultBody struct {
	Document   string  `json:"document"`
	Page       int     `json:"page"`
	MinPage    int     `json:"min_page"`
	MaxPage    int     `json:"max_page"`
	Chunk      int     `json:"chunk"`
	Text       string  `json:"text"`
	Distance   float32 `json:"distance"`
	Similarity float32 `json:"similarity"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	Results []resultBody `json:"results"`
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	Answer     string       `json:"answer"`
	Model      string       `json:"model"`
	TokensUsed int          `json:"tokens_used"`
	Citations  []citeBody   `json:"citations"`
	Unresolved []citeBody   `json:"unresolved"`
	Sources    []resultBody `json:"sources"`
}

// citeBody is one citation marker found in an answer.
type citeBody struct {
	Document string `json:"document"`
	Page     int    `json:"page"`
	Count    int    `json:"count"`
	Marker   string `json:"marker"`
}

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
}
