package config

import (
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// EnvAliases maps short environment variable names to config keys. They
// work alongside the full DOCREWIND_<KEY> names.
var EnvAliases = map[string]string{
	"DOCREWIND_DB_DRIVER":   "database.driver",
	"DOCREWIND_DB_PATH":     "database.path",
	"DOCREWIND_DB_HOST":     "database.postgres.host",
	"DOCREWIND_DB_PORT":     "database.postgres.port",
	"DOCREWIND_DB_NAME":     "database.postgres.database",
	"DOCREWIND_DB_USER":     "database.postgres.user",
	"DOCREWIND_DB_PASSWORD": "database.postgres.password",
	"DOCREWIND_DB_SSL_MODE": "database.postgres.ssl_mode",
	"DOCREWIND_TEMP_DIR":    "export.temp_dir",
	"DOCREWIND_LOG_LEVEL":   "log.level",
	"DOCREWIND_LOG_FORMAT":  "log.format",
}

// BindEnvAliases binds each key to its full and short environment names.
// The full name takes precedence when both are set.
func BindEnvAliases(v *viper.Viper) {
	for _, env := range EnvVarNames() {
		key := EnvAliases[env]
		_ = v.BindEnv(key, fullEnvName(key), env)
	}
}

// EnvVarNames returns the short environment variable names, sorted.
func EnvVarNames() []string {
	names := make([]string, 0, len(EnvAliases))
	for name := range EnvAliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fullEnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
