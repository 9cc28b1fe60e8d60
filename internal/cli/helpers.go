// Package cli implements the docrewind command-line interface.
// This file contains shared helper functions used across multiple commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/randalmurphal/docrewind/internal/config"
	"github.com/randalmurphal/docrewind/internal/storage"
)

// loadConfig resolves defaults, the config file and the environment.
func loadConfig() (*config.Config, error) {
	v := viper.New()
	config.Configure(v, cfgFile)
	if err := config.ReadConfig(v); err != nil {
		return nil, err
	}
	return config.Load(v)
}

// newLogger builds the command logger. --verbose forces debug and --quiet
// keeps only errors.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if useJSONLogs(cfg.Format) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func useJSONLogs(format string) bool {
	switch format {
	case config.FormatJSON:
		return true
	case config.FormatText:
		return false
	default:
		return !isTerminal(os.Stderr)
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// commandEnv is what most commands need: config, logger and an open store.
type commandEnv struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend *storage.DatabaseBackend
}

func (e *commandEnv) Close() error {
	return e.backend.Close()
}

// openEnv loads config and opens the history database. Callers must Close.
func openEnv(cmd *cobra.Command) (*commandEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log)
	backend, err := storage.NewBackend(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}
	return &commandEnv{cfg: cfg, logger: logger, backend: backend}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// infof prints a human-readable status line unless --quiet is set.
func infof(cmd *cobra.Command, format string, args ...any) {
	if quiet {
		return
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}
