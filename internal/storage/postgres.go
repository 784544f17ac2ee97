package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jwebster45206/fabler/pkg/storage"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS fabler_saves (
	name       TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps saves as JSONB rows.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ storage.Storage = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// SaveSession requires data to be valid JSON since the column is JSONB.
func (p *PostgresStore) SaveSession(ctx context.Context, name string, data []byte) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO fabler_saves (name, data, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		name, string(data), time.Now().UTC(),
	)
	if err != nil {
		p.logger.Error("Failed to save session", "name", name, "error", err)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (p *PostgresStore) LoadSession(ctx context.Context, name string) ([]byte, error) {
	var data string
	err := p.pool.QueryRow(ctx, `SELECT data::text FROM fabler_saves WHERE name = $1`, name).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return []byte(data), nil
}

func (p *PostgresStore) DeleteSession(ctx context.Context, name string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM fabler_saves WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ListSessions(ctx context.Context) ([]storage.SaveInfo, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT name, octet_length(data::text), updated_at FROM fabler_saves ORDER BY name COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.SaveInfo, error) {
		var info storage.SaveInfo
		err := row.Scan(&info.Name, &info.Size, &info.UpdatedAt)
		return info, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if out == nil {
		out = []storage.SaveInfo{}
	}
	return out, nil
}
