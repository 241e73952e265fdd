// Package commands defines all Cobra CLI commands for the studymate binary.
package commands

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/audit"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/config"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// dbPath holds the --db flag value. Empty means STUDYMATE_DB or the default.
var dbPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "studymate",
		Short: "StudyMate: ask questions about your course material, with citations",
		Long: `StudyMate turns lecture notes, handouts and web pages into a searchable
library and answers questions about them, citing the document and page
each claim comes from.

The library is kept in a local SQLite database (~/.studymate/library.db by
default, override with --db or STUDYMATE_DB).

Providers are selected via environment variables (MODEL_PROVIDER,
EMBEDDING_PROVIDER, VECTOR_BACKEND), a .env file in the working directory,
or a YAML config file (~/.studymate/config.yaml).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("studymate: load .env: %w", err)
			}

			log := logging.New()
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.studymate/config.yaml)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", `Library database path, or "disabled" for an in-memory library (default: ~/.studymate/library.db)`)

	root.AddCommand(
		NewIngestCmd(),
		NewSearchCmd(),
		NewAskCmd(),
		NewStatsCmd(),
		NewClearCmd(),
		NewServeCmd(),
		NewDiagnoseCmd(),
		NewVersionCmd(),
	)

	return root
}
