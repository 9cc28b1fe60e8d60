package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/randalmurphal/docrewind/internal/errors"
)

// load runs the full load sequence with an explicit config path.
func load(t *testing.T, path string) (*Config, error) {
	t.Helper()
	v := viper.New()
	Configure(v, path)
	if err := ReadConfig(v); err != nil {
		return nil, err
	}
	return Load(v)
}

func TestLoad_DefaultsOnly(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("HOME", filepath.Join(tmpDir, "nonexistent"))

	cfg, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ProjectConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("HOME", filepath.Join(tmpDir, "nonexistent"))

	require.NoError(t, os.MkdirAll(DirName, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(DirName, ConfigFileName), []byte(`
database:
  path: data/other.db
export:
  compression_level: 9
  temp_dir: /var/tmp
log:
  level: debug
`), 0644))

	cfg, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, "data/other.db", cfg.Database.Path)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 9, cfg.Export.CompressionLevel)
	assert.Equal(t, "/var/tmp", cfg.Export.TempDir)
	assert.Equal(t, 500, cfg.Export.UpdatePageSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, FormatAuto, cfg.Log.Format)
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  postgres:
    host: db.internal
    database: history
    user: rewind
`), 0644))

	cfg, err := load(t, path)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := load(t, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("HOME", filepath.Join(tmpDir, "nonexistent"))

	t.Setenv("DOCREWIND_EXPORT_COMPRESSION_LEVEL", "1")
	t.Setenv("DOCREWIND_DB_PASSWORD", "s3cret")
	t.Setenv("DOCREWIND_LOG_FORMAT", "json")

	cfg, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Export.CompressionLevel)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Equal(t, FormatJSON, cfg.Log.Format)
}

func TestLoad_FullEnvNameWinsOverAlias(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("HOME", filepath.Join(tmpDir, "nonexistent"))

	t.Setenv("DOCREWIND_LOG_LEVEL", "warn")
	t.Setenv("DOCREWIND_DATABASE_PATH", "full.db")
	t.Setenv("DOCREWIND_DB_PATH", "alias.db")

	cfg, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "full.db", cfg.Database.Path)
}

func TestLoad_InvalidValue(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("HOME", filepath.Join(tmpDir, "nonexistent"))
	t.Setenv("DOCREWIND_DB_DRIVER", "oracle")

	_, err := load(t, "")
	require.Error(t, err)
	assert.True(t, docerrors.HasCode(err, docerrors.CodeConfigInvalid))
}

func TestFullEnvName(t *testing.T) {
	assert.Equal(t, "DOCREWIND_DATABASE_POSTGRES_SSL_MODE", fullEnvName("database.postgres.ssl_mode"))
	assert.Equal(t, "DOCREWIND_LOG_LEVEL", fullEnvName("log.level"))
}
