package cli

import (
	"github.com/spf13/cobra"

	"github.com/randalmurphal/docrewind/internal/config"
)

// newMigrateCmd creates the migrate command
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the history database",
		Long: `Create the history database if needed and apply pending schema migrations.

Every other command migrates on open as well; migrate is useful to prepare
a PostgreSQL database ahead of time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			target := env.cfg.Database.Path
			if env.cfg.Database.Driver == config.DriverPostgres {
				pg := env.cfg.Database.Postgres
				target = pg.Host + "/" + pg.Database
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"driver":   env.cfg.Database.Driver,
					"database": target,
				})
			}
			infof(cmd, "Database ready: %s (%s)", target, env.cfg.Database.Driver)
			return nil
		},
	}
}
