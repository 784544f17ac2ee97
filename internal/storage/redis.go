package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/fabler/pkg/storage"
)

const (
	DefaultRedisPrefix = "fabler"

	redisDataField    = "data"
	redisUpdatedField = "updated_at"
)

// RedisStore keeps each save in a hash under "<prefix>:save:<name>" and
// indexes names in the sorted set "<prefix>:saves".
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
}

// Ensure RedisStore implements Storage interface
var _ storage.Storage = (*RedisStore)(nil)

// NewRedisStore accepts either a redis:// URL or a bare host:port.
func NewRedisStore(redisURL string, logger *slog.Logger) *RedisStore {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		opts = &redis.Options{Addr: redisURL}
	}
	return NewRedisStoreWithClient(redis.NewClient(opts), logger)
}

func NewRedisStoreWithClient(client *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger,
		prefix: DefaultRedisPrefix,
	}
}

// Client exposes the underlying connection so pub/sub can share it.
func (r *RedisStore) Client() *redis.Client {
	return r.client
}

func (r *RedisStore) saveKey(name string) string {
	return r.prefix + ":save:" + name
}

func (r *RedisStore) indexKey() string {
	return r.prefix + ":saves"
}

// Health and lifecycle methods

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStore) WaitForConnection(ctx context.Context) error {
	const maxRetries = 30
	retryDelay := 2 * time.Second

	for i := range maxRetries {
		err := r.Ping(ctx)
		if err == nil {
			r.logger.Info("Redis connection established")
			return nil
		}
		r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
		case <-time.After(retryDelay):
		}
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Save operations

func (r *RedisStore) SaveSession(ctx context.Context, name string, data []byte) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.saveKey(name),
			redisDataField, data,
			redisUpdatedField, now.Format(time.RFC3339Nano),
		)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: 0, Member: name})
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save session", "name", name, "error", err)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisStore) LoadSession(ctx context.Context, name string) ([]byte, error) {
	data, err := r.client.HGet(ctx, r.saveKey(name), redisDataField).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		r.logger.Error("Failed to load session", "name", name, "error", err)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return data, nil
}

func (r *RedisStore) DeleteSession(ctx context.Context, name string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.saveKey(name))
		pipe.ZRem(ctx, r.indexKey(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if del.Val() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *RedisStore) ListSessions(ctx context.Context) ([]storage.SaveInfo, error) {
	// all members share score 0, so ZRANGE returns them lexicographically
	names, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(names) == 0 {
		return []storage.SaveInfo{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(names))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, name := range names {
			cmds[i] = pipe.HGetAll(ctx, r.saveKey(name))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read session metadata: %w", err)
	}

	out := make([]storage.SaveInfo, 0, len(names))
	for i, name := range names {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			// index entry without a hash; skip it
			continue
		}
		info := storage.SaveInfo{Name: name, Size: len(fields[redisDataField])}
		if ts, err := time.Parse(time.RFC3339Nano, fields[redisUpdatedField]); err == nil {
			info.UpdatedAt = ts
		}
		out = append(out, info)
	}
	return out, nil
}
