package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/docrewind/internal/config"
	docerrors "github.com/randalmurphal/docrewind/internal/errors"
)

func TestConfigCmd_ShowsDefaults(t *testing.T) {
	setupWorkspace(t)

	out := mustRun(t, "config")
	assert.Contains(t, out, "driver: sqlite")
	assert.Contains(t, out, "compression_level: 6")
	assert.Equal(t, out, mustRun(t, "config", "show"))
}

func TestConfigCmd_FileAndEnv(t *testing.T) {
	dir := setupWorkspace(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, config.DirName), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DirName, config.ConfigFileName), []byte(`export:
  compression_level: 9
log:
  level: warn
`), 0644))
	t.Setenv("DOCREWIND_LOG_LEVEL", "debug")

	out := mustRun(t, "config", "show", "--json")
	var got config.Config
	decodeJSON(t, out, &got)
	assert.Equal(t, 9, got.Export.CompressionLevel)
	assert.Equal(t, "debug", got.Log.Level, "environment wins over the file")
	assert.Equal(t, config.DriverSQLite, got.Database.Driver)
}

func TestConfigCmd_ExplicitFile(t *testing.T) {
	dir := setupWorkspace(t)
	path := filepath.Join(dir, "alt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: alt.db\n"), 0644))

	out := mustRun(t, "config", "--config", path)
	assert.Contains(t, out, "path: alt.db")

	_, _, err := runCLI(t, "config", "--config", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "a named config file must exist")
}

func TestConfigCmd_InvalidValue(t *testing.T) {
	setupWorkspace(t)
	t.Setenv("DOCREWIND_DB_DRIVER", "oracle")

	_, _, err := runCLI(t, "config")
	require.Error(t, err)
	assert.True(t, docerrors.HasCode(err, docerrors.CodeConfigInvalid))
}

func TestConfigCmd_MasksPassword(t *testing.T) {
	setupWorkspace(t)
	t.Setenv("DOCREWIND_DB_PASSWORD", "hunter2")

	out := mustRun(t, "config")
	assert.NotContains(t, out, "hunter2")

	out = mustRun(t, "config", "--json")
	assert.NotContains(t, out, "hunter2")
}

func TestConfigInitCmd(t *testing.T) {
	dir := setupWorkspace(t)
	path := filepath.Join(dir, config.DirName, config.ConfigFileName)

	out := mustRun(t, "config", "init")
	assert.Contains(t, out, "Wrote")
	assert.FileExists(t, path)

	_, _, err := runCLI(t, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	mustRun(t, "config", "init", "--force")
}

func TestConfigEnvCmd(t *testing.T) {
	out := mustRun(t, "config", "env")
	assert.Contains(t, out, "DOCREWIND_DB_PATH")
	assert.Contains(t, out, "database.path")

	out = mustRun(t, "config", "env", "--json")
	var got map[string]string
	decodeJSON(t, out, &got)
	assert.Equal(t, "export.temp_dir", got["DOCREWIND_TEMP_DIR"])
}
