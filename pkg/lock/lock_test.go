package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
)

func TestMemoryLockerSerializesSameKey(t *testing.T) {
	locker := NewMemoryLocker(0)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "2024-03-04")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, locker.held())
}

func TestMemoryLockerIndependentKeys(t *testing.T) {
	locker := NewMemoryLocker(50 * time.Millisecond)
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "2024-03-04")
	require.NoError(t, err)
	unlockB, err := locker.Lock(ctx, "2024-03-05")
	require.NoError(t, err)

	unlockA()
	unlockA()
	unlockB()
	assert.Equal(t, 0, locker.held())
}

func TestMemoryLockerTimeout(t *testing.T) {
	locker := NewMemoryLocker(20 * time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "2024-03-04")
	require.NoError(t, err)
	defer unlock()

	_, err = locker.Lock(ctx, "2024-03-04")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrLockTimeout))
}

func TestMemoryLockerContextCancel(t *testing.T) {
	locker := NewMemoryLocker(0)
	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeRedis struct {
	mu       sync.Mutex
	values   map[string]string
	setErr   error
	released []string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		f.released = append(f.released, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLockerAcquireAndRelease(t *testing.T) {
	client := newFakeRedis()
	locker := NewRedisLocker(client, time.Minute, 30*time.Millisecond)
	locker.retry = 5 * time.Millisecond

	unlock, err := locker.Lock(context.Background(), "2024-03-04")
	require.NoError(t, err)

	_, err = locker.Lock(context.Background(), "2024-03-04")
	assert.True(t, errors.Is(err, appErrors.ErrLockTimeout))

	unlock()
	unlock()
	assert.Equal(t, []string{"substitute:lock:2024-03-04"}, client.released)

	unlock, err = locker.Lock(context.Background(), "2024-03-04")
	require.NoError(t, err)
	unlock()
}

func TestRedisLockerPropagatesClientError(t *testing.T) {
	client := newFakeRedis()
	client.setErr = errors.New("connection refused")
	locker := NewRedisLocker(client, time.Minute, time.Second)

	_, err := locker.Lock(context.Background(), "2024-03-04")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
