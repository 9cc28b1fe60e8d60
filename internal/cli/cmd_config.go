package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/docrewind/internal/config"
)

// newConfigCmd creates the config command
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create docrewind configuration",
		Long: `Show or create docrewind configuration.

Configuration is resolved in this order (later sources win):
  1. Built-in defaults
  2. .docrewind/config.yaml, or $HOME/.docrewind/config.yaml
  3. DOCREWIND_* environment variables

Running 'docrewind config' without a subcommand shows the resolved config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd)
		},
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigEnvCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd)
		},
	}
}

func showConfig(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if jsonOut {
		masked := *cfg
		if masked.Database.Postgres.Password != "" {
			masked.Database.Postgres.Password = "********"
		}
		return printJSON(cmd.OutOrStdout(), masked)
	}
	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to .docrewind/config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = filepath.Join(config.DirName, config.ConfigFileName)
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Default().SaveTo(path); err != nil {
				return err
			}
			infof(cmd, "Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")
	return cmd
}

func newConfigEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the short environment variable names",
		Long: `List the short environment variable names and the config key each sets.

Every config key can also be set as DOCREWIND_<KEY>, with dots replaced by
underscores: export.compression_level is DOCREWIND_EXPORT_COMPRESSION_LEVEL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := config.EnvVarNames()
			if jsonOut {
				out := make(map[string]string, len(names))
				for _, name := range names {
					out[name] = config.EnvAliases[name]
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			for _, name := range names {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-28s %s\n", name, config.EnvAliases[name])
			}
			return nil
		},
	}
}
