package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"postwatch/internal/config"
	"postwatch/internal/database"
	"postwatch/internal/store/jsonfile"

	"github.com/spf13/cobra"
)

func newStateCmd() *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and migrate the persisted watch state",
	}

	stateCmd.AddCommand(
		newStateShowCmd(),
		newStateImportCmd(),
	)

	return stateCmd
}

func newStateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the watch state in the users/last_ids JSON layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := config.LoadStorage()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			log := newLogger(cmd.ErrOrStderr(), slog.LevelWarn)

			backend, _, err := openBackend(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, backend.Close())
			}()

			state, err := backend.Load(ctx)
			if err != nil {
				return fmt.Errorf("load state: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(state.Normalize())
		},
	}
}

func newStateImportCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy the JSON state file at STATE_PATH into the SQLite database at DB_PATH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := config.LoadStorage()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			log := newLogger(cmd.ErrOrStderr(), slog.LevelWarn)

			src, err := jsonfile.New(cfg.StatePath, log)
			if err != nil {
				return fmt.Errorf("open state file: %w", err)
			}

			state, err := src.Load(ctx)
			if err != nil {
				return fmt.Errorf("load state file: %w", err)
			}

			db, err := database.New(ctx, cfg.DBPath, log)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() {
				err = errors.Join(err, db.Close())
			}()

			existing, err := db.Load(ctx)
			if err != nil {
				return fmt.Errorf("load database state: %w", err)
			}

			if len(existing.Users) > 0 && !force {
				return fmt.Errorf("database already has %d accounts (dbPath = %s), use --force to replace them",
					len(existing.Users), cfg.DBPath)
			}

			if err = db.Save(ctx, state); err != nil {
				return fmt.Errorf("save database state: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts and %d cursors from %s into %s\n",
				len(state.Users), len(state.LastIDs), src.Path(), cfg.DBPath)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "replace accounts already present in the database")

	return cmd
}
