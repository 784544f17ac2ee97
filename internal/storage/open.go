package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/fabler/internal/config"
	"github.com/jwebster45206/fabler/pkg/storage"
)

// Open builds the save store selected by cfg.StorageBackend and checks
// that it answers.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	var (
		store storage.Storage
		err   error
	)
	switch cfg.StorageBackend {
	case config.BackendRedis:
		r := NewRedisStore(cfg.RedisURL, logger)
		if err := r.WaitForConnection(ctx); err != nil {
			_ = r.Close()
			return nil, err
		}
		store = r
	case config.BackendSQLite:
		store, err = NewSQLiteStore(ctx, cfg.SQLiteDSN, logger)
	case config.BackendPostgres:
		store, err = NewPostgresStore(ctx, cfg.DatabaseURL, logger)
	case config.BackendFile:
		store, err = NewFileStore(cfg.SaveDir, logger)
	case config.BackendMemory:
		store = storage.NewMemoryStorage()
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Info("Storage connection established", "backend", cfg.StorageBackend)
	return store, nil
}
