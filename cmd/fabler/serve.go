package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/fabler/internal/config"
	"github.com/jwebster45206/fabler/internal/engine"
	"github.com/jwebster45206/fabler/internal/events"
	"github.com/jwebster45206/fabler/internal/gateway"
	"github.com/jwebster45206/fabler/internal/handlers"
	"github.com/jwebster45206/fabler/internal/middleware"
	"github.com/jwebster45206/fabler/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadConfig(os.Stdout)
	if err != nil {
		return err
	}
	log.Info("Starting fabler API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"storage", cfg.StorageBackend)

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage connection", "error", err)
		}
	}()

	presets, err := config.LoadPresets(cfg.PresetsFile)
	if err != nil {
		return err
	}

	// turn events ride on the Redis connection when there is one
	var broadcaster *events.Broadcaster
	var notifier engine.Notifier
	if rs, ok := store.(*storage.RedisStore); ok {
		broadcaster = events.NewBroadcaster(rs.Client(), log)
		notifier = broadcaster
	}

	usage := gateway.NewUsageTracker()
	ec, err := engineConfig(ctx, cfg, usage, notifier, log)
	if err != nil {
		return err
	}
	registry := engine.NewRegistry(ec)

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(store, log))
	sessions := handlers.NewSessionsHandler(registry, store, presets, log)
	mux.Handle("/v1/sessions", sessions)
	mux.Handle("/v1/sessions/", sessions)
	saves := handlers.NewSavesHandler(store, log)
	mux.Handle("/v1/saves", saves)
	mux.Handle("/v1/saves/", saves)
	mux.Handle("/v1/presets", handlers.NewPresetsHandler(presets, log))
	if broadcaster != nil {
		mux.Handle("/v1/events/", handlers.NewEventsHandler(broadcaster, log))
	}

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log, mux),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: turns and event streams run long
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		registry.CloseAll()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	usage.LogSummary(log)
	log.Info("Server exited")
	return err
}
