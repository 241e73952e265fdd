package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/audit"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
)

// NewClearCmd constructs the `studymate clear` command, which removes every
// document from the library.
func NewClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all documents from the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("clear: this deletes every document in the library; re-run with --yes to confirm")
			}

			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			path, err := resolveDBPath(dbPath)
			if err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			if path == "" {
				return fmt.Errorf("clear: persistence is disabled, nothing to clear")
			}

			// Not restored: the saved vectors may have another dimension.
			lib, err := openLibrary(ctx, log, "")
			if err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			defer lib.close()
			if err := lib.Clear(ctx); err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			if err := openAndSave(ctx, path, lib); err != nil {
				return fmt.Errorf("clear: %w", err)
			}

			audit.LogLibraryChange(ctx, log, "clear", nil, 0)
			fmt.Fprintln(cmd.OutOrStdout(), "Library cleared.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")

	return cmd
}
