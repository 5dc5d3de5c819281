package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis(t *testing.T) {
	rc, mr := NewRedis(t)

	require.NoError(t, rc.HealthCheck(context.Background()))
	require.NoError(t, rc.Set(context.Background(), "key", "value", 0))

	got, err := mr.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}
