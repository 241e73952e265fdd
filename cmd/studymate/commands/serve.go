package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/assistant"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/server"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/tracing"
)

// NewServeCmd constructs the `studymate serve` command, which exposes the
// library over the HTTP API.
func NewServeCmd() *cobra.Command {
	var (
		addr       string
		noLLM      bool
		rate       float64
		burst      int
		trustProxy bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the StudyMate HTTP API",
		Long: `Start the StudyMate HTTP API.

Endpoints:
  POST   /api/documents   add documents {name, pages:[{number,text}]}
  DELETE /api/documents   remove every document
  POST   /api/search      {query, top_k}
  POST   /api/ask         {question, top_k}
  GET    /api/stats       library statistics
  GET    /healthz         liveness
  GET    /readyz          dependency readiness
  GET    /metrics         Prometheus metrics

Set STUDYMATE_API_KEY to require "Authorization: Bearer <key>" (or X-API-Key)
on /api/*. Questions cost 5 rate-limit tokens, uploads 4, everything else 1.

Examples:
  studymate serve
  studymate serve --addr :9090
  MODEL_PROVIDER=openai studymate serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if flush, ok := tracing.Install(); ok {
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			metrics := server.NewMetrics(prometheus.DefaultRegisterer)

			path, err := resolveDBPath(dbPath)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			lib, err := openLibrary(ctx, log, path, rag.WithObserver(metrics))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer lib.close()

			var ask *assistant.Assistant
			if !noLLM {
				gen, _, err := buildGenerator(ctx, log, metrics.GenerationRetry)
				if err != nil {
					return fmt.Errorf("serve: %w (use --no-llm to serve search only)", err)
				}
				if ask, err = assistant.New(&assistant.Config{Retriever: lib, Generator: gen}); err != nil {
					return fmt.Errorf("serve: %w", err)
				}
			}

			if addr == "" {
				addr = os.Getenv("STUDYMATE_ADDR")
			}

			cfg := &server.Config{
				Addr:      addr,
				Logger:    log,
				Pingers:   lib.pingers(),
				RateLimit: rate,
				RateBurst: burst,
				APIKey:    os.Getenv("STUDYMATE_API_KEY"),
				Metrics:   metrics,
				Persist:   func(ctx context.Context) error { return lib.save(ctx) },

				TrustForwardedFor: trustProxy,
			}
			var srv *server.Server
			if ask != nil {
				srv, err = server.New(lib, ask, cfg)
			} else {
				// A nil *Assistant would make a non-nil asker.
				srv, err = server.New(lib, nil, cfg)
			}
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: STUDYMATE_ADDR or 127.0.0.1:8080)")
	cmd.Flags().BoolVar(&noLLM, "no-llm", false, "Serve without a generation provider; /api/ask responds 503")
	cmd.Flags().Float64Var(&rate, "rate-limit", 0, "Sustained rate-limit tokens per second per client IP (default 10)")
	cmd.Flags().IntVar(&burst, "rate-burst", 0, "Burst size per client IP (default 20)")
	cmd.Flags().BoolVar(&trustProxy, "trust-proxy", false, "Identify clients by X-Forwarded-For (only behind a reverse proxy)")

	return cmd
}
