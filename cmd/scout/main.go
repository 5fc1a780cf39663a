package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/scout/internal/config"
	"github.com/livinlefevreloca/scout/internal/db"
	"github.com/livinlefevreloca/scout/internal/store"
)

var (
	configPath string

	cfg      *config.Config
	logger   *slog.Logger
	database *db.DB
	st       *store.Store
)

var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "Run saved search profiles and keep the best findings",
	Long: `Scout runs saved search profiles: it plans queries, discovers candidates,
analyzes and classifies them, and persists the high priority ones.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger = newLogger(cfg.Logging, os.Stderr)
		slog.SetDefault(logger)

		logger.Debug("connecting to database", "driver", cfg.Database.Driver)
		database, err = db.OpenWithConfig(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		st = store.New(database)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (TOML)")
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(c config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// closeDatabase closes the connection opened by the root command, if any.
// Cobra skips post-run hooks when a command fails, so main calls it.
func closeDatabase() {
	if database == nil {
		return
	}
	if err := database.Close(); err != nil && logger != nil {
		logger.Error("failed to close database", "error", err)
	}
	database = nil
	st = nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	closeDatabase()
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
