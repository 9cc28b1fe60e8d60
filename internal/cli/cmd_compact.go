package cli

import (
	"github.com/spf13/cobra"

	docerrors "github.com/randalmurphal/docrewind/internal/errors"
)

// newCompactCmd creates the compact command
func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact PROJECT",
		Short: "Move a project's pending updates into its update log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]

			env, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			n, err := env.backend.CompactProject(cmd.Context(), projectID)
			if err != nil {
				return docerrors.ErrCompaction(projectID).WithCause(err)
			}
			env.logger.Debug("project compacted", "project_id", projectID, "updates", n)

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"project":   projectID,
					"compacted": n,
				})
			}
			infof(cmd, "Compacted %d pending updates in %s", n, projectID)
			return nil
		},
	}
}
