package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Configure prepares v to read docrewind configuration. Load order (later
// sources override earlier):
//  1. Built-in defaults
//  2. Config file: path if set, else .docrewind/config.yaml, then
//     $HOME/.docrewind/config.yaml
//  3. Environment variables (DOCREWIND_*, with "." replaced by "_", plus
//     the short aliases in EnvAliases)
func Configure(v *viper.Viper, path string) {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(DirName)
		v.AddConfigPath("$HOME/" + DirName)
		v.SetConfigType("yaml")
		v.SetConfigName(strings.TrimSuffix(ConfigFileName, ".yaml"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindEnvAliases(v)
}

// SetDefaults registers every key with its default. Keys must be known to
// viper for environment variables to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.postgres.host", d.Database.Postgres.Host)
	v.SetDefault("database.postgres.port", d.Database.Postgres.Port)
	v.SetDefault("database.postgres.database", d.Database.Postgres.Database)
	v.SetDefault("database.postgres.user", d.Database.Postgres.User)
	v.SetDefault("database.postgres.password", d.Database.Postgres.Password)
	v.SetDefault("database.postgres.ssl_mode", d.Database.Postgres.SSLMode)
	v.SetDefault("export.temp_dir", d.Export.TempDir)
	v.SetDefault("export.compression_level", d.Export.CompressionLevel)
	v.SetDefault("export.update_page_size", d.Export.UpdatePageSize)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// ReadConfig reads the config file if there is one. A missing file is not
// an error unless it was named explicitly.
func ReadConfig(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
