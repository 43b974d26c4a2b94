package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func newTestClient() *Client {
	return NewClient(Options{StaleTime: time.Minute, Retry: 2, RetryDelay: time.Millisecond}, nil)
}

func counter(calls *int32, v string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		atomic.AddInt32(calls, 1)
		return v, nil
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "movie/42", Key{"movie", "42"}.String())
	assert.True(t, Key{"movies", "latest"}.HasPrefix(Key{"movies"}))
	assert.True(t, Key{"movies"}.HasPrefix(Key{}))
	assert.False(t, Key{"movie", "1"}.HasPrefix(Key{"movies"}))
	assert.False(t, Key{"movies"}.HasPrefix(Key{"movies", "latest"}))
}

func TestFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("serves fresh data from cache", func(t *testing.T) {
		c := newTestClient()
		var calls int32

		for range 3 {
			v, err := Fetch(ctx, c, Key{"settings"}, counter(&calls, "ok"))
			require.NoError(t, err)
			assert.Equal(t, "ok", v)
		}
		assert.EqualValues(t, 1, calls)
	})

	t.Run("refetches once stale", func(t *testing.T) {
		c := newTestClient()
		now := time.Now()
		c.now = func() time.Time { return now }
		var calls int32

		_, err := Fetch(ctx, c, Key{"movies"}, counter(&calls, "a"))
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		_, err = Fetch(ctx, c, Key{"movies"}, counter(&calls, "b"))
		require.NoError(t, err)
		assert.EqualValues(t, 2, calls)
	})

	t.Run("zero stale time always refetches", func(t *testing.T) {
		c := newTestClient()
		var calls int32

		Fetch(ctx, c, Key{"auth"}, counter(&calls, "a"), WithStaleTime(0))
		Fetch(ctx, c, Key{"auth"}, counter(&calls, "a"), WithStaleTime(0))
		assert.EqualValues(t, 2, calls)
	})

	t.Run("deduplicates concurrent fetches", func(t *testing.T) {
		c := newTestClient()
		var calls int32
		release := make(chan struct{})

		fn := func(context.Context) (string, error) {
			atomic.AddInt32(&calls, 1)
			<-release
			return "shared", nil
		}

		var wg sync.WaitGroup
		results := make([]string, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, err := Fetch(ctx, c, Key{"movies"}, fn)
				assert.NoError(t, err)
				results[i] = v
			}(i)
		}

		require.Eventually(t, func() bool { return c.Snapshot(Key{"movies"}).Fetching }, time.Second, time.Millisecond)
		time.Sleep(10 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.EqualValues(t, 1, calls)
		for _, v := range results {
			assert.Equal(t, "shared", v)
		}
	})

	t.Run("retries failures", func(t *testing.T) {
		c := newTestClient()
		var calls int32

		v, err := Fetch(ctx, c, Key{"movies"}, func(context.Context) (string, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return "", errBoom
			}
			return "finally", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "finally", v)
		assert.EqualValues(t, 3, calls)
	})

	t.Run("gives up after retry budget", func(t *testing.T) {
		c := newTestClient()
		var calls int32

		_, err := Fetch(ctx, c, Key{"movies"}, func(context.Context) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "", errBoom
		})
		assert.ErrorIs(t, err, errBoom)
		assert.EqualValues(t, 3, calls)
	})

	t.Run("WithRetry(0) disables retries", func(t *testing.T) {
		c := newTestClient()
		var calls int32

		_, err := Fetch(ctx, c, Key{"auth", "refresh"}, func(context.Context) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "", errBoom
		}, WithRetry(0))
		assert.ErrorIs(t, err, errBoom)
		assert.EqualValues(t, 1, calls)
	})

	t.Run("ShouldRetry filters errors", func(t *testing.T) {
		c := NewClient(Options{Retry: 3, ShouldRetry: func(err error) bool { return !errors.Is(err, errBoom) }}, nil)
		var calls int32

		_, err := Fetch(ctx, c, Key{"movie", "1"}, func(context.Context) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "", errBoom
		})
		assert.ErrorIs(t, err, errBoom)
		assert.EqualValues(t, 1, calls)
	})

	t.Run("canceled caller stops waiting but result is cached", func(t *testing.T) {
		c := newTestClient()
		release := make(chan struct{})
		cctx, cancel := context.WithCancel(ctx)

		done := make(chan error, 1)
		go func() {
			_, err := Fetch(cctx, c, Key{"movie", "7"}, func(context.Context) (string, error) {
				<-release
				return "late", nil
			})
			done <- err
		}()

		require.Eventually(t, func() bool { return c.Snapshot(Key{"movie", "7"}).Fetching }, time.Second, time.Millisecond)
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)

		close(release)
		require.Eventually(t, func() bool {
			return c.Snapshot(Key{"movie", "7"}).Status == StatusSuccess
		}, time.Second, time.Millisecond)

		v, ok := Get[string](c, Key{"movie", "7"})
		assert.True(t, ok)
		assert.Equal(t, "late", v)
	})

	t.Run("refetch replaces data of a different type", func(t *testing.T) {
		c := newTestClient()
		_, err := Fetch(ctx, c, Key{"x"}, func(context.Context) (int, error) { return 1, nil })
		require.NoError(t, err)

		c.Invalidate(Key{"x"})
		_, err = Fetch(ctx, c, Key{"x"}, func(context.Context) (string, error) { return "s", nil })
		require.NoError(t, err)

		v, ok := Get[string](c, Key{"x"})
		assert.True(t, ok)
		assert.Equal(t, "s", v)
	})
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()

	t.Run("forces refetch under prefix only", func(t *testing.T) {
		c := newTestClient()
		var movies, latest, movie int32

		Fetch(ctx, c, Key{"movies"}, counter(&movies, "all"))
		Fetch(ctx, c, Key{"movies", "latest"}, counter(&latest, "latest"))
		Fetch(ctx, c, Key{"movie", "1"}, counter(&movie, "one"))

		assert.Equal(t, 2, c.Invalidate(Key{"movies"}))
		assert.True(t, c.Snapshot(Key{"movies", "latest"}).Stale)

		Fetch(ctx, c, Key{"movies"}, counter(&movies, "all"))
		Fetch(ctx, c, Key{"movies", "latest"}, counter(&latest, "latest"))
		Fetch(ctx, c, Key{"movie", "1"}, counter(&movie, "one"))

		assert.EqualValues(t, 2, movies)
		assert.EqualValues(t, 2, latest)
		assert.EqualValues(t, 1, movie)
		assert.False(t, c.Snapshot(Key{"movies"}).Stale)
	})

	t.Run("reflects new data after invalidation", func(t *testing.T) {
		c := newTestClient()
		user := "alice"
		fn := func(context.Context) (string, error) { return user, nil }

		v, _ := Fetch(ctx, c, Key{"auth"}, fn)
		assert.Equal(t, "alice", v)

		user = "bob"
		v, _ = Fetch(ctx, c, Key{"auth"}, fn)
		assert.Equal(t, "alice", v, "fresh cache is served until invalidated")

		c.Invalidate(Key{"auth"})
		v, _ = Fetch(ctx, c, Key{"auth"}, fn)
		assert.Equal(t, "bob", v)
	})

	t.Run("fetch after invalidation does not join older flight", func(t *testing.T) {
		c := newTestClient()
		release := make(chan struct{})
		var calls int32

		go Fetch(ctx, c, Key{"settings"}, func(context.Context) (string, error) {
			atomic.AddInt32(&calls, 1)
			<-release
			return "old", nil
		})
		require.Eventually(t, func() bool { return c.Snapshot(Key{"settings"}).Fetching }, time.Second, time.Millisecond)

		c.Invalidate(Key{"settings"})
		v, err := Fetch(ctx, c, Key{"settings"}, counter(&calls, "new"))
		require.NoError(t, err)
		assert.Equal(t, "new", v)
		assert.EqualValues(t, 2, calls)
		close(release)
	})
}

func TestClear(t *testing.T) {
	ctx := context.Background()

	t.Run("drops all entries", func(t *testing.T) {
		c := newTestClient()
		Fetch(ctx, c, Key{"movies"}, counter(new(int32), "a"))
		Fetch(ctx, c, Key{"users"}, counter(new(int32), "b"))
		require.Len(t, c.Keys(), 2)

		c.Clear()
		assert.Empty(t, c.Keys())
		_, ok := Get[string](c, Key{"movies"})
		assert.False(t, ok)
	})

	t.Run("discards in-flight results", func(t *testing.T) {
		c := newTestClient()
		release := make(chan struct{})
		done := make(chan error, 1)

		go func() {
			_, err := Fetch(ctx, c, Key{"users"}, func(context.Context) (string, error) {
				<-release
				return "previous session", nil
			})
			done <- err
		}()
		require.Eventually(t, func() bool { return c.Snapshot(Key{"users"}).Fetching }, time.Second, time.Millisecond)

		c.Clear()
		close(release)

		assert.ErrorIs(t, <-done, ErrDiscarded)
		_, ok := Get[string](c, Key{"users"})
		assert.False(t, ok)
		assert.Equal(t, StatusPending, c.Snapshot(Key{"users"}).Status)
	})
}

func TestRemove(t *testing.T) {
	c := newTestClient()
	Fetch(context.Background(), c, Key{"user", "1"}, counter(new(int32), "a"))
	Fetch(context.Background(), c, Key{"users"}, counter(new(int32), "b"))

	c.Remove(Key{"user"})
	_, ok := Get[string](c, Key{"user", "1"})
	assert.False(t, ok)
	_, ok = Get[string](c, Key{"users"})
	assert.True(t, ok)
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	c := newTestClient()

	assert.Equal(t, StatusPending, c.Snapshot(Key{"movies"}).Status)

	_, err := Fetch(ctx, c, Key{"movies"}, func(context.Context) (string, error) { return "", errBoom }, WithRetry(0))
	require.Error(t, err)
	snap := c.Snapshot(Key{"movies"})
	assert.Equal(t, StatusError, snap.Status)
	assert.ErrorIs(t, snap.Err, errBoom)

	_, err = Fetch(ctx, c, Key{"movies"}, counter(new(int32), "ok"))
	require.NoError(t, err)
	snap = c.Snapshot(Key{"movies"})
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Nil(t, snap.Err)
	assert.Equal(t, "ok", snap.Data)
	assert.False(t, snap.UpdatedAt.IsZero())
}
