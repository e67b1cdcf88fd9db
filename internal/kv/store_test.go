package kv

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFixture struct {
	store   Store
	advance func(time.Duration)
}

func fixtures(t *testing.T) map[string]func(t *testing.T) storeFixture {
	return map[string]func(t *testing.T) storeFixture{
		"memory": func(t *testing.T) storeFixture {
			s := NewMemoryStore()
			now := time.Unix(1_700_000_000, 0)
			var mu sync.Mutex
			s.SetClock(func() time.Time {
				mu.Lock()
				defer mu.Unlock()
				return now
			})
			return storeFixture{store: s, advance: func(d time.Duration) {
				mu.Lock()
				now = now.Add(d)
				mu.Unlock()
			}}
		},
		"redis": func(t *testing.T) storeFixture {
			mr := miniredis.RunT(t)
			s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
			t.Cleanup(func() { _ = s.Close() })
			return storeFixture{store: s, advance: mr.FastForward}
		},
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, newFixture := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("get set expire", func(t *testing.T) {
				f := newFixture(t)
				_, err := f.store.Get(ctx, "device:abc")
				require.ErrorIs(t, err, ErrNotFound)

				require.NoError(t, f.store.Set(ctx, "device:abc", "pending", time.Minute))
				v, err := f.store.Get(ctx, "device:abc")
				require.NoError(t, err)
				assert.Equal(t, "pending", v)

				f.advance(61 * time.Second)
				_, err = f.store.Get(ctx, "device:abc")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("setnx", func(t *testing.T) {
				f := newFixture(t)
				ok, err := f.store.SetNX(ctx, "device-user:ABCD-2345", "one", time.Minute)
				require.NoError(t, err)
				assert.True(t, ok)

				ok, err = f.store.SetNX(ctx, "device-user:ABCD-2345", "two", time.Minute)
				require.NoError(t, err)
				assert.False(t, ok)

				v, err := f.store.Get(ctx, "device-user:ABCD-2345")
				require.NoError(t, err)
				assert.Equal(t, "one", v)
			})

			t.Run("delete counts existing keys", func(t *testing.T) {
				f := newFixture(t)
				require.NoError(t, f.store.Set(ctx, "a", "1", time.Minute))
				require.NoError(t, f.store.Set(ctx, "b", "2", time.Minute))

				n, err := f.store.Delete(ctx, "a", "b", "c")
				require.NoError(t, err)
				assert.Equal(t, int64(2), n)

				n, err = f.store.Delete(ctx, "a")
				require.NoError(t, err)
				assert.Equal(t, int64(0), n)
			})

			t.Run("getdel is single use", func(t *testing.T) {
				f := newFixture(t)
				require.NoError(t, f.store.Set(ctx, "oauth-state:x", "1", time.Minute))

				v, err := f.store.GetDel(ctx, "oauth-state:x")
				require.NoError(t, err)
				assert.Equal(t, "1", v)

				_, err = f.store.GetDel(ctx, "oauth-state:x")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("incr fixed window", func(t *testing.T) {
				f := newFixture(t)
				for want := int64(1); want <= 3; want++ {
					n, err := f.store.Incr(ctx, "rl:poll:abc", time.Minute)
					require.NoError(t, err)
					assert.Equal(t, want, n)
				}

				f.advance(time.Minute + time.Second)
				n, err := f.store.Incr(ctx, "rl:poll:abc", time.Minute)
				require.NoError(t, err)
				assert.Equal(t, int64(1), n)
			})

			t.Run("incr repairs a counter without expiry", func(t *testing.T) {
				f := newFixture(t)
				require.NoError(t, f.store.Set(ctx, "rl:issue:ip", "4", 0))

				n, err := f.store.Incr(ctx, "rl:issue:ip", time.Minute)
				require.NoError(t, err)
				assert.Equal(t, int64(5), n)

				// Later hits keep the window that was set, not a fresh one.
				f.advance(40 * time.Second)
				_, err = f.store.Incr(ctx, "rl:issue:ip", time.Minute)
				require.NoError(t, err)

				f.advance(21 * time.Second)
				n, err = f.store.Incr(ctx, "rl:issue:ip", time.Minute)
				require.NoError(t, err)
				assert.Equal(t, int64(1), n)
			})

			require.NoError(t, newFixture(t).store.Ping(ctx))
		})
	}
}

func TestMemoryStoreConcurrentSetNX(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.SetNX(ctx, "device-user:WXYZ-2345", "x", time.Minute)
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryStoreSweep(t *testing.T) {
	s := NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", "1", time.Minute))
	require.NoError(t, s.Set(ctx, "long", "2", time.Hour))
	require.NoError(t, s.Set(ctx, "forever", "3", 0))

	now = now.Add(10 * time.Minute)
	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 2, s.Len())

	var _ Sweeper = s
}
