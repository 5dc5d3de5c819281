package database_test

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/celebrum-analytics/internal/config"
	"github.com/irfndi/celebrum-analytics/internal/database"
	"github.com/irfndi/celebrum-analytics/internal/testutil"
)

func TestNewRedisConnection(t *testing.T) {
	_, mr := testutil.NewRedis(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	rc, err := database.NewRedisConnection(config.RedisConfig{Host: mr.Host(), Port: port}, testutil.QuietLogger())
	require.NoError(t, err)
	defer rc.Close()

	assert.NoError(t, rc.HealthCheck(context.Background()))
}

func TestNewRedisConnection_Unreachable(t *testing.T) {
	_, err := database.NewRedisConnection(config.RedisConfig{Host: "127.0.0.1", Port: 1}, testutil.QuietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestRedisClient_Operations(t *testing.T) {
	rc, mr := testutil.NewRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "series_cache:gold", "payload", time.Minute))
	got, err := rc.Get(ctx, "series_cache:gold")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
	assert.Equal(t, time.Minute, mr.TTL("series_cache:gold"))

	n, err := rc.Exists(ctx, "series_cache:gold", "series_cache:silver")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, rc.Delete(ctx, "series_cache:gold"))
	assert.False(t, mr.Exists("series_cache:gold"))
}

func TestRedisClient_DeletePattern(t *testing.T) {
	rc, mr := testutil.NewRedis(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("series_cache:asset%d", i), "x"))
	}
	require.NoError(t, mr.Set("other:key", "x"))

	deleted, err := rc.DeletePattern(ctx, "series_cache:*")
	require.NoError(t, err)
	assert.Equal(t, 250, deleted)
	assert.Equal(t, []string{"other:key"}, mr.Keys())
}

func TestRedisClient_HealthCheckAfterClose(t *testing.T) {
	rc, mr := testutil.NewRedis(t)
	mr.Close()
	assert.Error(t, rc.HealthCheck(context.Background()))
}
