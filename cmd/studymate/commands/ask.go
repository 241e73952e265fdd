package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/assistant"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/citation"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/generate"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/tracing"
)

// NewAskCmd constructs the `studymate ask` command, which answers a single
// question from the library and prints the cited sources.
func NewAskCmd() *cobra.Command {
	var (
		topK      int
		maxTokens int
		sources   bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about your course material",
		Long: `Answer a question using the passages in the library.

The answer cites its sources as [Document p.N]. Citations that match a
passage in the library are listed under the answer; citations that match
nothing are flagged so you can check them.

Examples:
  studymate ask "what happens during anaphase?"
  studymate ask --top-k 8 --sources "compare SN1 and SN2 reactions"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if flush, ok := tracing.Install(); ok {
				defer flush()
			}

			path, err := resolveDBPath(dbPath)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			lib, err := openLibrary(ctx, log, path)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer lib.close()

			gen, _, err := buildGenerator(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			a, err := assistant.New(&assistant.Config{
				Retriever:        lib,
				Generator:        gen,
				TopK:             topK,
				MaxContextTokens: maxTokens,
			})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			resp, err := a.Ask(ctx, strings.Join(args, " "), topK)
			if err != nil {
				var rl *generate.RateLimitExceeded
				if errors.As(err, &rl) {
					return fmt.Errorf("ask: the model provider is rate limiting requests (gave up after %d attempts), try again shortly: %w", rl.Attempts, err)
				}
				return fmt.Errorf("ask: %w", err)
			}

			out := cmd.OutOrStdout()
			printAnswer(out, resp)
			if sources {
				fmt.Fprintln(out)
				printResults(out, resp.Sources)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", assistant.DefaultTopK, "Number of passages to retrieve")
	cmd.Flags().IntVar(&maxTokens, "max-context-tokens", 0, "Estimated token budget for retrieved passages (default 6000)")
	cmd.Flags().BoolVar(&sources, "sources", false, "Also print the retrieved passages")

	return cmd
}

// printAnswer renders the answer text followed by its checked citations.
func printAnswer(w io.Writer, resp *assistant.Response) {
	if len(resp.Sources) == 0 {
		fmt.Fprintln(w, color.YellowString("Note: the library is empty or nothing matched, so this answer is not grounded in your material."))
	}
	fmt.Fprintln(w, resp.Answer.Text)

	if len(resp.Citations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, color.New(color.Bold).Sprint("Sources:"))
		for _, c := range resp.Citations {
			fmt.Fprintf(w, "  %s %s\n", color.GreenString("✓"), describeCitation(c))
		}
	}
	if len(resp.Unresolved) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, color.YellowString("Citations not found in the library:"))
		for _, c := range resp.Unresolved {
			fmt.Fprintf(w, "  %s %s\n", color.YellowString("?"), describeCitation(c))
		}
	}
}

func describeCitation(c citation.Citation) string {
	if c.Count > 1 {
		return fmt.Sprintf("%s ×%d", c, c.Count)
	}
	return c.String()
}
