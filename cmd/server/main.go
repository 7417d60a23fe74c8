package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/coursedesk/internal/config"
	"github.com/JonMunkholm/coursedesk/internal/importer"
	"github.com/JonMunkholm/coursedesk/internal/kv"
	"github.com/JonMunkholm/coursedesk/internal/learner"
	"github.com/JonMunkholm/coursedesk/internal/logging"
	"github.com/JonMunkholm/coursedesk/internal/roster"
	"github.com/JonMunkholm/coursedesk/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := kv.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	students, err := roster.Open(cfg.Roster)
	if err != nil {
		return err
	}

	outcome := importer.Outcome(importer.AlwaysSucceed)
	if cfg.Import.FailEvery > 0 {
		outcome = importer.EveryNth(cfg.Import.FailEvery)
	}
	imports := importer.NewService(importer.Options{
		TickInterval:  cfg.Import.TickInterval,
		Outcome:       outcome,
		MaxFileSize:   cfg.Import.MaxFileSize,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		Retention:     cfg.Import.Retention,
	}, store)

	panels := roster.NewPanels(cfg.Roster.PanelTTL)

	server := web.NewServer(cfg, web.Deps{
		Students: students,
		Segments: roster.NewSegments(store),
		Panels:   panels,
		Imports:  imports,
		Learner:  learner.NewStore(store),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		slog.Info("server stopped")
		return nil
	})

	g.Go(func() error {
		imports.RunJanitor(gctx, cfg.Import.Retention/2)
		return nil
	})

	g.Go(func() error {
		panels.RunJanitor(gctx, cfg.Roster.PanelTTL/2)
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		status := imports.LimiterStatus()
		if status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := imports.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time, cancelling", "error", err)
				imports.CancelAll()
			} else {
				slog.Info("all imports completed")
			}
		}

		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
