package cli

import (
	"github.com/spf13/cobra"

	"github.com/randalmurphal/docrewind/internal/storage"
)

// newImportCmd creates the import command
func newImportCmd() *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load documents and updates from a YAML or JSON file",
		Long: `Load a project's documents and update log from a YAML or JSON file.

Documents replace any stored snapshot with the same id. Updates are queued
as pending until the project is compacted; exports compact first, or pass
--compact to do it now.

Example file:

  project: thesis
  documents:
    - id: main.tex
      content: "ABC"
      version: 3
  updates:
    - doc_id: main.tex
      v: 3
      op: [{p: 2, i: "C"}]
      meta: {start_ts: 1700000003000, end_ts: 1700000003500, user_id: alice}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, err := storage.LoadFixture(args[0])
			if err != nil {
				return err
			}

			env, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			ctx := cmd.Context()
			stats, err := env.backend.Import(ctx, fixture)
			if err != nil {
				return err
			}

			compacted := 0
			if compact {
				if compacted, err = env.backend.CompactProject(ctx, fixture.Project); err != nil {
					return err
				}
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"project":   fixture.Project,
					"documents": stats.Documents,
					"updates":   stats.Updates,
					"compacted": compacted,
				})
			}
			infof(cmd, "Imported %d documents and %d updates into %s", stats.Documents, stats.Updates, fixture.Project)
			if compact {
				infof(cmd, "Compacted %d pending updates", compacted)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&compact, "compact", false, "compact pending updates after import")
	return cmd
}
