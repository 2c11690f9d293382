package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"postwatch/internal/bot"
	"postwatch/internal/config"
	"postwatch/internal/domain"
	"postwatch/internal/notify"
	"postwatch/internal/scheduler"
	"postwatch/internal/source"
	"postwatch/internal/store"
	"postwatch/internal/watch"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot and the poll scheduler until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	start := time.Now()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config",
			"error", err)

		return err
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	log := newLogger(os.Stdout, level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, location, err := openBackend(ctx, cfg.Storage(), log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to open state storage",
			"error", err,
			"driver", cfg.StoreDriver,
			"location", location)

		return err
	}

	ws, err := store.Open(ctx, backend)
	if err != nil {
		var corrupt *domain.StorageCorruptError
		if errors.As(err, &corrupt) {
			log.ErrorContext(ctx, "State storage is corrupt, refusing to start",
				"error", err,
				"location", corrupt.Location)
		} else {
			log.ErrorContext(ctx, "Failed to load state",
				"error", err,
				"location", location)
		}

		return errors.Join(err, backend.Close())
	}
	defer func() {
		if closeErr := ws.Close(); closeErr != nil {
			log.ErrorContext(ctx, "Failed to close state storage",
				"error", closeErr,
				"location", location)
		}
	}()
	log.InfoContext(ctx, "State is loaded",
		"driver", cfg.StoreDriver,
		"location", location,
		"accounts", ws.Count())

	src, err := newSource(cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize content source",
			"error", err,
			"source", cfg.Source,
			"nitterURL", cfg.NitterURL)

		return err
	}

	links := source.NewLinks(cfg.PermalinkBase)
	service := watch.NewService(ws, cfg.CheckInterval, log, cfg.PermalinkBase, cfg.NitterURL)

	botInst, err := bot.New(cfg.Token, service, links, cfg.AllowedUsers, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize bot",
			"error", err,
			"allowedUsersCount", len(cfg.AllowedUsers))

		return err
	}
	log.InfoContext(ctx, "Bot is initialized",
		"allowedUsersCount", len(cfg.AllowedUsers))

	dispatcher := notify.NewDispatcher(botInst, cfg.ChatID, links, log)
	sched := scheduler.New(ctx, service, src, dispatcher, cfg.CheckInterval, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"intervalSeconds", cfg.CheckInterval.Seconds())

		return err
	}
	log.InfoContext(ctx, "Scheduler is started",
		"intervalSeconds", cfg.CheckInterval.Seconds(),
		"source", cfg.Source)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		botInst.Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.InfoContext(gctx, "Shutdown is requested",
			"cause", context.Cause(gctx))

		sched.Stop()
		log.InfoContext(gctx, "Scheduler is stopped")

		return nil
	})

	err = g.Wait()

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	return err
}

func newSource(cfg config.Config, log *slog.Logger) (source.Source, error) {
	switch cfg.Source {
	case config.SourceHTML:
		src, err := source.NewHTML(cfg.NitterURL, cfg.FetchTimeout, log)
		if err != nil {
			return nil, fmt.Errorf("create HTML source: %w", err)
		}
		return src, nil

	default:
		src, err := source.NewRSS(cfg.NitterURL, cfg.FetchTimeout, log)
		if err != nil {
			return nil, fmt.Errorf("create RSS source: %w", err)
		}
		return src, nil
	}
}
