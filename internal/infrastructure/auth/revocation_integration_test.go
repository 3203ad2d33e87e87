//go:build integration

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/clinic/backend/internal/infrastructure/auth"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start redis container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisRevocationList(t *testing.T) {
	list := auth.NewRedisRevocationList(newRedisClient(t))
	ctx := context.Background()

	t.Run("revoked jti", func(t *testing.T) {
		require.NoError(t, list.Revoke(ctx, "jti-1", time.Minute))

		revoked, err := list.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked)

		revoked, err = list.IsRevoked(ctx, "jti-unknown")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("user cutoff only hits older tokens", func(t *testing.T) {
		issuedBefore := time.Now().Add(-time.Minute)
		require.NoError(t, list.RevokeUser(ctx, "user-1", time.Hour))

		invalid, err := list.IsUserTokenInvalidated(ctx, "user-1", issuedBefore)
		require.NoError(t, err)
		assert.True(t, invalid)

		invalid, err = list.IsUserTokenInvalidated(ctx, "user-1", time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, invalid)

		invalid, err = list.IsUserTokenInvalidated(ctx, "user-2", issuedBefore)
		require.NoError(t, err)
		assert.False(t, invalid)
	})
}
