// Package config provides configuration for docrewind.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// DirName is the per-project directory holding config and the database.
	DirName = ".docrewind"
	// ConfigFileName is the config file inside DirName.
	ConfigFileName = "config.yaml"
	// EnvPrefix prefixes every environment variable docrewind reads.
	EnvPrefix = "DOCREWIND"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Log formats. FormatAuto picks text on a terminal and JSON otherwise.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the resolved docrewind configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" json:"database" mapstructure:"database"`
	Export   ExportConfig   `yaml:"export" json:"export" mapstructure:"export"`
	Log      LogConfig      `yaml:"log" json:"log" mapstructure:"log"`
}

// DatabaseConfig defines the history store connection.
type DatabaseConfig struct {
	// Driver is the database type: "sqlite" or "postgres"
	Driver string `yaml:"driver" json:"driver" mapstructure:"driver"`

	// Path of the SQLite database file
	Path string `yaml:"path" json:"path" mapstructure:"path"`

	Postgres PostgresConfig `yaml:"postgres" json:"postgres" mapstructure:"postgres"`
}

// PostgresConfig defines PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `yaml:"host" json:"host" mapstructure:"host"`
	Port     int    `yaml:"port" json:"port" mapstructure:"port"`
	Database string `yaml:"database" json:"database" mapstructure:"database"`
	User     string `yaml:"user" json:"user" mapstructure:"user"`
	Password string `yaml:"password" json:"password,omitempty" mapstructure:"password"` // Use env DOCREWIND_DB_PASSWORD
	SSLMode  string `yaml:"ssl_mode" json:"ssl_mode" mapstructure:"ssl_mode"`
}

// DSN returns a postgres:// connection URL.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   p.Host,
		Path:   "/" + p.Database,
	}
	if p.Port != 0 {
		u.Host = p.Host + ":" + strconv.Itoa(p.Port)
	}
	if p.User != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.User, p.Password)
		} else {
			u.User = url.User(p.User)
		}
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String()
}

// ExportConfig defines how archives are produced.
type ExportConfig struct {
	// TempDir holds archives while they are generated (default: os.TempDir())
	TempDir string `yaml:"temp_dir" json:"temp_dir" mapstructure:"temp_dir"`

	// CompressionLevel is the deflate level, 0 (store) to 9
	CompressionLevel int `yaml:"compression_level" json:"compression_level" mapstructure:"compression_level"`

	// UpdatePageSize is how many updates are read per query
	UpdatePageSize int `yaml:"update_page_size" json:"update_page_size" mapstructure:"update_page_size"`
}

// LogConfig defines logging output.
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level" json:"level" mapstructure:"level"`

	// Format is auto, text or json
	Format string `yaml:"format" json:"format" mapstructure:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   filepath.Join(DirName, "history.db"),
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
		},
		Export: ExportConfig{
			CompressionLevel: 6,
			UpdatePageSize:   500,
		},
		Log: LogConfig{
			Level:  "info",
			Format: FormatAuto,
		},
	}
}

// YAML renders the configuration. The postgres password is masked.
func (c *Config) YAML() ([]byte, error) {
	out := *c
	if out.Database.Postgres.Password != "" {
		out.Database.Postgres.Password = "********"
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// SaveTo writes the configuration to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
