package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/vidindex/internal/config"
	"github.com/roach88/vidindex/internal/engine"
	"github.com/roach88/vidindex/internal/store"
)

// settings resolves the configuration for one command invocation. Flags
// win over the environment, which wins over the file.
func (o *RootOptions) settings() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.LogFormat != "" {
		cfg.LogFormat = o.LogFormat
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	return cfg.NewLogger(cmd.ErrOrStderr())
}

func retryPolicy(cfg config.Config) engine.RetryPolicy {
	return engine.RetryPolicy{
		Attempts:        cfg.Retry.Attempts,
		InitialInterval: cfg.Retry.Backoff,
		MaxInterval:     cfg.Retry.MaxBackoff,
	}
}

// openExistingStore opens a database that must already exist. Read-only
// commands use it so that a typo in --db does not create an empty index.
func openExistingStore(path string) (*store.Store, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func closeStore(st *store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("error closing database", "error", err)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
