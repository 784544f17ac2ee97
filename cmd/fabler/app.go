package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jwebster45206/fabler/internal/config"
	"github.com/jwebster45206/fabler/internal/engine"
	"github.com/jwebster45206/fabler/internal/gateway"
	"github.com/jwebster45206/fabler/internal/logger"
	"github.com/jwebster45206/fabler/internal/services"
	"github.com/jwebster45206/fabler/internal/storage"
	pkgstorage "github.com/jwebster45206/fabler/pkg/storage"
)

const (
	initModelTimeout = 10 * time.Minute
	storageTimeout   = 2 * time.Minute
)

// loadConfig reads and validates the environment and installs the logger.
func loadConfig(logOut io.Writer) (*config.Config, *slog.Logger, error) {
	return loadConfigWith(logOut, (*config.Config).Validate)
}

// loadStorageConfig is loadConfig for commands that never call a provider.
func loadStorageConfig(logOut io.Writer) (*config.Config, *slog.Logger, error) {
	return loadConfigWith(logOut, (*config.Config).ValidateStorage)
}

func loadConfigWith(logOut io.Writer, validate func(*config.Config) error) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.Setup(cfg, logOut)
	if err := validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, log, nil
}

func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (pkgstorage.Storage, error) {
	ctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage: %w", err)
	}
	return store, nil
}

// newGateway builds a provider for modelName, initializes the model and
// wraps it in a retrying gateway.
func newGateway(ctx context.Context, cfg *config.Config, modelName string, usage *gateway.UsageTracker, log *slog.Logger) (*gateway.Gateway, error) {
	llm, err := services.NewLLMService(ctx, cfg, modelName, log)
	if err != nil {
		return nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, initModelTimeout)
	defer cancel()
	if err := llm.InitModel(initCtx, modelName); err != nil {
		return nil, fmt.Errorf("failed to initialize LLM model %q: %w", modelName, err)
	}

	return gateway.New(llm, usage, log, gateway.Options{
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.GenerationTimeout,
	}), nil
}

// engineConfig wires the story gateway and, when BACKEND_MODEL_NAME is set,
// a separate gateway for entity extraction.
func engineConfig(ctx context.Context, cfg *config.Config, usage *gateway.UsageTracker, notifier engine.Notifier, log *slog.Logger) (engine.Config, error) {
	story, err := newGateway(ctx, cfg, cfg.ModelName, usage, log)
	if err != nil {
		return engine.Config{}, err
	}
	log.Info("LLM provider ready", "provider", cfg.LLMProvider, "model", cfg.ModelName)

	ec := engine.Config{
		Story:               story,
		Notifier:            notifier,
		Logger:              log,
		HistoryWindow:       cfg.HistoryWindow,
		MaxCorrections:      cfg.MaxCorrections,
		IncludeWorldContext: cfg.WorldContext,
	}
	// zero means "no corrections" here, while the engine reads zero as default
	if cfg.MaxCorrections == 0 {
		ec.MaxCorrections = -1
	}

	if cfg.BackendModelName != "" && cfg.BackendModelName != cfg.ModelName {
		entities, err := newGateway(ctx, cfg, cfg.BackendModelName, usage, log)
		if err != nil {
			return engine.Config{}, err
		}
		ec.Entities = entities
		log.Info("Entity extraction model ready", "model", cfg.BackendModelName)
	}
	return ec, nil
}
