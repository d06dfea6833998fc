package testhelpers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type TestRedis struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

// SetupTestRedis starts Redis in a container. Tests are skipped in -short mode.
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(ctx).Err())

	return &TestRedis{Container: container, URL: url, Client: client}
}

func (tr *TestRedis) Cleanup(t *testing.T) {
	_ = tr.Client.Close()
	require.NoError(t, tr.Container.Terminate(context.Background()))
}

func (tr *TestRedis) FlushAll(t *testing.T) {
	require.NoError(t, tr.Client.FlushAll(context.Background()).Err())
}
