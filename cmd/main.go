package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"postwatch/internal/config"
	"postwatch/internal/database"
	"postwatch/internal/store"
	"postwatch/internal/store/jsonfile"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "postwatch",
		Short: "Relay new posts from watched accounts to a Telegram chat",
		Long: "postwatch polls a set of watched accounts on a fixed interval and sends every " +
			"newly published post once to a single Telegram chat. Operators manage the " +
			"watch-set through bot commands.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newStateCmd(),
	)

	return rootCmd
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func openBackend(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (store.Backend, string, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		db, err := database.New(ctx, cfg.DBPath, log)
		if err != nil {
			return nil, cfg.DBPath, fmt.Errorf("open database: %w", err)
		}
		return db, cfg.DBPath, nil

	default:
		backend, err := jsonfile.New(cfg.StatePath, log)
		if err != nil {
			return nil, cfg.StatePath, fmt.Errorf("open state file: %w", err)
		}
		return backend, backend.Path(), nil
	}
}
