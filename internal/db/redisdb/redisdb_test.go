package redisdb

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDB(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set")
	}

	theStorage, err := New(addr, os.Getenv("REDIS_PASSWORD"), 0, time.Second)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, theStorage.Remove("token", "user"))
		require.NoError(t, theStorage.Close())
	}()

	require.NoError(t, theStorage.Set("token", "abc"))

	value, found, err := theStorage.Get("token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "abc", value)

	require.NoError(t, theStorage.Remove("token", "user"))
	_, found, err = theStorage.Get("token")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisDBUnreachable(t *testing.T) {
	_, err := New("127.0.0.1:1", "", 0, 200*time.Millisecond)
	assert.Error(t, err)
}
