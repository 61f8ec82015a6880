package identifier

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerialises(t *testing.T) {
	locker := NewLocalLocker()
	release, err := locker.Acquire(context.Background(), LockKey(1))
	require.NoError(t, err)

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		r, err := locker.Acquire(context.Background(), LockKey(1))
		if err == nil {
			acquired.Store(true)
			r()
		}
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, acquired.Load())
	release()
	<-done
	assert.True(t, acquired.Load())
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	locker := NewLocalLocker()
	r1, err := locker.Acquire(context.Background(), LockKey(1))
	require.NoError(t, err)
	r2, err := locker.Acquire(context.Background(), LockKey(2))
	require.NoError(t, err)
	r1()
	r2()
	r1()
	assert.Empty(t, locker.locks)
}

func TestLocalLockerHonoursContext(t *testing.T) {
	locker := NewLocalLocker()
	release, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	locker := NewRedisLocker(client, time.Second, nil)
	key := LockKey(time.Now().UnixNano())

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 60*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(short, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release2, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	release2()
}
