package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/server"
)

// NewDiagnoseCmd constructs the `studymate diagnose` command, which checks
// that every configured dependency is reachable.
func NewDiagnoseCmd() *cobra.Command {
	var (
		timeout time.Duration
		skipLLM bool
	)

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check connectivity to the embedder, index, database and model",
		Long: `Probe every dependency StudyMate is configured to use and report
which ones are reachable.

The model probe sends a one-word prompt and consumes a few tokens; skip it
with --skip-llm.

Examples:
  studymate diagnose
  EMBEDDING_PROVIDER=ollama studymate diagnose --skip-llm`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)
			out := cmd.OutOrStdout()

			path, err := resolveDBPath(dbPath)
			if err != nil {
				return fmt.Errorf("diagnose: %w", err)
			}
			lib, err := openLibrary(ctx, log, path)
			if err != nil {
				fmt.Fprintf(out, "%s library: %v\n", color.RedString("✗"), err)
				return fmt.Errorf("diagnose: library could not be opened")
			}
			defer lib.close()

			pingers := lib.pingers()
			if !skipLLM {
				gen, pcfg, err := buildGenerator(ctx, log, nil)
				if err != nil {
					fmt.Fprintf(out, "%s model provider: %v\n", color.RedString("✗"), err)
				} else {
					pingers = append(pingers, server.NewGeneratorPinger(string(pcfg.Backend), gen))
				}
			}

			if failed := runChecks(ctx, out, pingers, timeout); failed > 0 {
				return fmt.Errorf("diagnose: %d of %d checks failed", failed, len(pingers))
			}
			fmt.Fprintln(out, color.GreenString("All checks passed."))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for each check")
	cmd.Flags().BoolVar(&skipLLM, "skip-llm", false, "Do not probe the generation model")

	return cmd
}

// runChecks pings each dependency in order, prints one line per check and
// returns the number that failed.
func runChecks(ctx context.Context, w io.Writer, pingers []server.Pinger, timeout time.Duration) int {
	failed := 0
	for _, p := range pingers {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		err := p.Ping(pctx)
		cancel()

		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s %-10s %v\n", color.RedString("✗"), p.Name(), err)
			continue
		}
		fmt.Fprintf(w, "%s %-10s ok (%s)\n", color.GreenString("✓"), p.Name(), elapsed)
	}
	return failed
}
