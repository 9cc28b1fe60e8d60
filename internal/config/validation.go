package config

import (
	"fmt"
	"slices"

	docerrors "github.com/randalmurphal/docrewind/internal/errors"
)

var (
	ValidDrivers    = []string{DriverSQLite, DriverPostgres}
	ValidLogLevels  = []string{"debug", "info", "warn", "error"}
	ValidLogFormats = []string{FormatAuto, FormatText, FormatJSON}
)

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !slices.Contains(ValidDrivers, c.Database.Driver) {
		return docerrors.ErrConfigInvalid("database.driver",
			fmt.Sprintf("%q is not one of %v", c.Database.Driver, ValidDrivers))
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return docerrors.ErrConfigMissing("database.path")
		}
	case DriverPostgres:
		if c.Database.Postgres.Host == "" {
			return docerrors.ErrConfigMissing("database.postgres.host")
		}
		if c.Database.Postgres.Database == "" {
			return docerrors.ErrConfigMissing("database.postgres.database")
		}
	}

	if c.Export.CompressionLevel < 0 || c.Export.CompressionLevel > 9 {
		return docerrors.ErrConfigInvalid("export.compression_level",
			fmt.Sprintf("%d is outside 0 to 9", c.Export.CompressionLevel))
	}
	if c.Export.UpdatePageSize <= 0 {
		return docerrors.ErrConfigInvalid("export.update_page_size",
			fmt.Sprintf("%d must be positive", c.Export.UpdatePageSize))
	}

	if !slices.Contains(ValidLogLevels, c.Log.Level) {
		return docerrors.ErrConfigInvalid("log.level",
			fmt.Sprintf("%q is not one of %v", c.Log.Level, ValidLogLevels))
	}
	if !slices.Contains(ValidLogFormats, c.Log.Format) {
		return docerrors.ErrConfigInvalid("log.format",
			fmt.Sprintf("%q is not one of %v", c.Log.Format, ValidLogFormats))
	}
	return nil
}
