package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_WithoutRedis(t *testing.T) {
	l := New(nil, time.Second)
	release, err := l.Acquire(context.Background(), "settle:DEP-1", 0)
	require.NoError(t, err)
	release()

	var nilLocker *Locker
	release, err = nilLocker.Acquire(context.Background(), "x", 0)
	require.NoError(t, err)
	release()
}

func TestAcquire_ExclusiveWithRedis(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	l := New(rdb, 5*time.Second)
	key := "test:" + time.Now().Format(time.RFC3339Nano)

	release, err := l.Acquire(context.Background(), key, 0)
	require.NoError(t, err)

	_, err = l.Acquire(context.Background(), key, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrLocked)

	release()
	release2, err := l.Acquire(context.Background(), key, 0)
	require.NoError(t, err)
	release2()
}
