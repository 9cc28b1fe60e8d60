// Package cli implements the docrewind command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
	jsonOut bool
)

// newRootCmd builds the command tree. Binding the global flags here also
// resets them, so every tree starts from the defaults.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docrewind",
		Short: "Export the edit history of collaborative documents",
		Long: `docrewind exports the full edit history of a project as a zip archive.

For every document the archive holds the current content, each recorded
update, and the earliest content that could be reconstructed by undoing
those updates. manifest.json indexes it all.

Quick start:
  docrewind import history.yaml     Load documents and updates
  docrewind docs PROJECT            List a project's documents
  docrewind export PROJECT          Write PROJECT-history.zip
  docrewind inspect FILE.zip        Look inside an archive`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .docrewind/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")

	// Add subcommands
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newCompactCmd())
	rootCmd.AddCommand(newDocsCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the CLI. Interrupts cancel the running command. The error,
// if any, has already been printed.
func Execute() error {
	ctx, cancel := SetupSignalHandler()
	defer cancel()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		PrintError(rootCmd.ErrOrStderr(), err)
		return err
	}
	return nil
}
