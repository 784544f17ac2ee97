package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/fabler/pkg/storage"
)

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	store, err := NewPostgresStore(ctx, dsn, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = store.pool.Exec(context.Background(), `DELETE FROM fabler_saves WHERE name LIKE 'pgtest%'`)
		_ = store.Close()
	})

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.SaveSession(ctx, "pgtest-a", []byte(`{"chapter":1}`)))
	require.NoError(t, store.SaveSession(ctx, "pgtest-a", []byte(`{"chapter":2}`)))

	data, err := store.LoadSession(ctx, "pgtest-a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"chapter":2}`, string(data))

	saves, err := store.ListSessions(ctx)
	require.NoError(t, err)
	var found bool
	for _, s := range saves {
		if s.Name == "pgtest-a" {
			found = true
			assert.False(t, s.UpdatedAt.IsZero())
		}
	}
	assert.True(t, found)

	require.NoError(t, store.DeleteSession(ctx, "pgtest-a"))
	assert.ErrorIs(t, store.DeleteSession(ctx, "pgtest-a"), storage.ErrNotFound)
	_, err = store.LoadSession(ctx, "pgtest-a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
