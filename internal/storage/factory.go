package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/docrewind/internal/config"
	"github.com/randalmurphal/docrewind/internal/db"
	"github.com/randalmurphal/docrewind/internal/db/driver"
)

// NewBackend opens the history database described by cfg and applies
// migrations.
func NewBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*DatabaseBackend, error) {
	var (
		pdb *db.ProjectDB
		err error
	)
	switch cfg.Database.Driver {
	case config.DriverSQLite, "":
		pdb, err = db.OpenProject(ctx, cfg.Database.Path)
	case config.DriverPostgres:
		pdb, err = db.OpenProjectWithDialect(ctx, cfg.Database.Postgres.DSN(), driver.DialectPostgres)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	return NewDatabaseBackend(pdb, cfg.Export.UpdatePageSize, logger), nil
}
