package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
)

// previewWords caps how much passage text search prints per result.
const previewWords = 40

// NewSearchCmd constructs the `studymate search` command, which prints the
// passages most similar to a query without calling the generation service.
func NewSearchCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the passages most similar to a query",
		Example: `  studymate search "phases of mitosis"
  studymate search --top-k 10 "acid base titration"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			path, err := resolveDBPath(dbPath)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			lib, err := openLibrary(ctx, log, path)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer lib.close()

			results, err := lib.Search(ctx, strings.Join(args, " "), topK)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of passages to return")

	return cmd
}

// printResults renders search results, nearest first.
func printResults(w io.Writer, results []rag.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No passages found. Add documents with 'studymate ingest'.")
		return
	}
	for i, r := range results {
		p := r.Passage
		pages := fmt.Sprintf("p.%d", p.MinPage)
		if p.MaxPage != p.MinPage {
			pages = fmt.Sprintf("pp.%d-%d", p.MinPage, p.MaxPage)
		}
		fmt.Fprintf(w, "%d. %s %s  %s\n", i+1,
			color.CyanString(p.DocumentName), pages,
			color.HiBlackString("similarity %.3f, chunk %d", r.Similarity, p.SequenceIndex))
		fmt.Fprintf(w, "   %s\n\n", preview(p.Text, previewWords))
	}
}

// preview returns the first n words of text, with an ellipsis if cut.
func preview(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + " …"
}
