//go:build integration

package registry

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisTestStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	store, err := NewRedisStore(context.Background(), RedisOptions{
		Addr:      addr,
		DB:        15,
		KeyPrefix: "calendarchat-test-" + uuid.NewString() + ":",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	store := newRedisTestStore(t)

	_, err := store.Get(ctx, "a@b.com")
	assert.ErrorIs(t, err, ErrNotFound)

	reg := New(store)
	_, err = reg.Upsert(ctx, "a@b.com", Tokens{AccessToken: "t", RefreshToken: "r", ExpiresIn: time.Hour})
	require.NoError(t, err)
	assert.True(t, reg.IsActive(ctx, "a@b.com"))

	ok, err := reg.Revoke(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, reg.IsActive(ctx, "a@b.com"))

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, StatusRevoked, all[0].Status)
	assert.NoError(t, store.Ping(ctx))
}
