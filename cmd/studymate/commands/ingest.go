package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/audit"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/ingestion"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
)

// NewIngestCmd constructs the `studymate ingest` command, which loads files,
// directories and URLs, adds them to the library and saves it.
func NewIngestCmd() *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "ingest <path|url>...",
		Short: "Add documents to the library",
		Long: `Load course material and add it to the library.

Accepted sources are .txt, .md and .html files, directories containing them
(not recursive), and http(s) URLs. Text files are split into pages on form
feed characters, so the output of 'pdftotext' keeps its page numbers.

Ingesting a document name that is already in the library adds its passages
again; run 'studymate clear' first to start over.

Examples:
  studymate ingest notes/lecture-03.txt
  studymate ingest ./handouts https://en.wikipedia.org/wiki/Mitosis
  pdftotext biology.pdf && studymate ingest biology.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)
			out := cmd.OutOrStdout()

			loader := ingestion.NewLoader(nil)
			var docs []rag.Document
			for _, src := range args {
				loaded, err := loader.Load(ctx, src)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				docs = append(docs, loaded...)
			}
			if len(docs) == 0 {
				return fmt.Errorf("ingest: no supported documents found in %v", args)
			}

			var bar *progressbar.ProgressBar
			if !noProgress {
				bar = newProgressBar(cmd.ErrOrStderr(), len(docs), "Ingesting")
			}
			progress := func(done, _ int, name string) {
				if bar != nil {
					bar.Describe(color.BlueString("Ingesting %s", name))
					_ = bar.Set(done)
				}
			}

			path, err := resolveDBPath(dbPath)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			lib, err := openLibrary(ctx, log, path, rag.WithProgress(progress))
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer lib.close()

			failures := lib.IngestAll(ctx, docs)
			if bar != nil {
				_ = bar.Finish()
				fmt.Fprintln(cmd.ErrOrStderr())
			}

			ingested := rag.Succeeded(docs, failures)

			if len(ingested) > 0 {
				if err := lib.save(ctx); err != nil {
					return fmt.Errorf("ingest: save library: %w", err)
				}
				audit.LogLibraryChange(ctx, log, "ingest", ingested, lib.Statistics().TotalChunks)
			}

			printIngestSummary(out, lib.Statistics(), ingested, failures)
			if len(failures) > 0 {
				log.Warn("some documents failed", slog.Int("failed", len(failures)))
				return fmt.Errorf("ingest: %d of %d documents failed", len(failures), len(docs))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	return cmd
}

// newProgressBar returns a document counter rendered to w.
func newProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// printIngestSummary reports what was added and what failed.
func printIngestSummary(w io.Writer, stats rag.Stats, ingested []string, failures []*rag.IngestionFailure) {
	for _, name := range ingested {
		d := stats.Documents[name]
		fmt.Fprintf(w, "%s %s (%d chunks, %d words)\n", color.GreenString("✓"), name, d.TotalChunks, d.TotalWords)
	}
	for _, f := range failures {
		fmt.Fprintf(w, "%s %s: %v\n", color.RedString("✗"), f.DocumentName, f.Cause)
	}
	fmt.Fprintf(w, "Library: %d documents, %d chunks\n", stats.TotalDocuments, stats.TotalChunks)
}
