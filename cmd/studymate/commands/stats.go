package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/ingestion"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
)

// NewStatsCmd constructs the `studymate stats` command.
func NewStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the documents in the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			path, err := resolveDBPath(dbPath)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			lib, err := openLibrary(ctx, log, path)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer lib.close()

			stats := lib.Statistics()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print statistics as JSON")

	return cmd
}

// printStats renders a per-document table followed by totals.
func printStats(w io.Writer, stats rag.Stats) {
	if stats.TotalDocuments == 0 {
		fmt.Fprintln(w, "The library is empty. Add documents with 'studymate ingest'.")
		return
	}

	names := make([]string, 0, len(stats.Documents))
	for name := range stats.Documents {
		names = append(names, name)
	}
	slices.Sort(names)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, color.New(color.Bold).Sprint("DOCUMENT\tCHUNKS\tWORDS\tSIZE"))
	for _, name := range names {
		d := stats.Documents[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", name, d.TotalChunks, d.TotalWords, ingestion.FormatSize(d.SourceSizeBytes))
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\n%d documents, %d chunks, index size %d, %d-dimensional embeddings\n",
		stats.TotalDocuments, stats.TotalChunks, stats.IndexSize, stats.EmbeddingDimension)
	fmt.Fprintf(w, "Chunking: %d words with %d overlap\n", stats.ChunkSize, stats.ChunkOverlap)
}
