package cli

import (
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"

	docerrors "github.com/randalmurphal/docrewind/internal/errors"
	"github.com/randalmurphal/docrewind/internal/export"
	"github.com/randalmurphal/docrewind/internal/history"
	"github.com/randalmurphal/docrewind/internal/util"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// defaultArchiveName is where export writes when -o is not given.
func defaultArchiveName(projectID string) string {
	return unsafeFileChars.ReplaceAllString(projectID, "_") + "-history.zip"
}

// newExportCmd creates the export command
func newExportCmd() *cobra.Command {
	var (
		output   string
		tempDir  string
		level    int
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "export PROJECT",
		Short: "Write a project's full edit history to a zip archive",
		Long: `Export the edit history of every document in a project.

The project's pending updates are compacted first. Each document is then
rewound update by update, most recent first; updates that cannot be undone
are recorded in the archive and skipped. manifest.json is written last and
indexes every entry.

The archive is built in a temporary file and moved to the output path
only once it is complete.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			if output == "" {
				output = defaultArchiveName(projectID)
			}

			env, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			opts := export.Options{
				TempDir:          env.cfg.Export.TempDir,
				CompressionLevel: env.cfg.Export.CompressionLevel,
			}
			if cmd.Flags().Changed("temp-dir") {
				opts.TempDir = tempDir
			}
			if cmd.Flags().Changed("level") {
				if level < 0 || level > 9 {
					return docerrors.ErrConfigInvalid("level", "must be between 0 and 9")
				}
				opts.CompressionLevel = level
			}
			if progress && !quiet && !jsonOut {
				w := cmd.ErrOrStderr()
				opts.OnStage = func(_ string, s export.Stage) {
					if !s.Terminal() {
						_, _ = w.Write([]byte(s.String() + "...\n"))
					}
				}
			}

			exporter := export.New(env.backend, history.TextReverser{}, opts, env.logger)
			res, err := exporter.Export(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			defer func() { _ = res.Close() }()

			if _, err := util.CopyFileAtomic(output, res.Path, 0644); err != nil {
				return err
			}
			if abs, err := filepath.Abs(output); err == nil {
				output = abs
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"id":        res.ID,
					"project":   projectID,
					"path":      output,
					"documents": res.Stats.Documents,
					"updates":   res.Stats.Updates,
					"failures":  res.Stats.Failures,
					"bytes":     res.Stats.Bytes,
				})
			}
			infof(cmd, "Exported %d documents (%d updates) to %s", res.Stats.Documents, res.Stats.Updates, output)
			if res.Stats.Failures > 0 {
				infof(cmd, "%d updates could not be undone; see the log for details", res.Stats.Failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "archive path (default PROJECT-history.zip)")
	cmd.Flags().StringVar(&tempDir, "temp-dir", "", "directory for the in-progress archive")
	cmd.Flags().IntVar(&level, "level", 6, "deflate level, 0 (store) to 9")
	cmd.Flags().BoolVar(&progress, "progress", false, "print each export stage to stderr")
	return cmd
}
