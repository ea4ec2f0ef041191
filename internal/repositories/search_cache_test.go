package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/gw-user-accounts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestSearchCacheRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7.0-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	}
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer redisC.Terminate(ctx)

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", host, port.Port()),
	})
	defer rdb.Close()
	require.NoError(t, rdb.Ping(ctx).Err())

	repo := NewSearchCacheRepository(rdb, 2*time.Second)
	users := []models.UserView{{ID: 1, Name: "NAME", Username: "USERNAME"}}

	t.Run("miss", func(t *testing.T) {
		got, key, ok, err := repo.Get(ctx, "nothing")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, got)
		assert.NotEmpty(t, key)
	})

	t.Run("set then get, term is case-insensitive", func(t *testing.T) {
		_, key, ok, err := repo.Get(ctx, "UserName")
		require.NoError(t, err)
		require.False(t, ok)
		require.NoError(t, repo.Set(ctx, key, users))

		got, _, ok, err := repo.Get(ctx, "username")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, users, got)
	})

	t.Run("invalidate drops entries", func(t *testing.T) {
		_, key, _, err := repo.Get(ctx, "user")
		require.NoError(t, err)
		require.NoError(t, repo.Set(ctx, key, users))
		require.NoError(t, repo.Invalidate(ctx))

		_, _, ok, err := repo.Get(ctx, "user")
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("fill that raced an invalidate stays invisible", func(t *testing.T) {
		_, staleKey, ok, err := repo.Get(ctx, "racer")
		require.NoError(t, err)
		require.False(t, ok)

		// A write lands between the store read and the fill.
		require.NoError(t, repo.Invalidate(ctx))
		require.NoError(t, repo.Set(ctx, staleKey, users))

		got, freshKey, ok, err := repo.Get(ctx, "racer")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, got)
		assert.NotEqual(t, staleKey, freshKey)
	})

	t.Run("entries expire", func(t *testing.T) {
		_, key, _, err := repo.Get(ctx, "short")
		require.NoError(t, err)
		require.NoError(t, repo.Set(ctx, key, users))
		time.Sleep(3 * time.Second)

		_, _, ok, err := repo.Get(ctx, "short")
		assert.NoError(t, err)
		assert.False(t, ok)
	})
}
