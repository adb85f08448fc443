package cache

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

func TestGetOrCompute_Coalescing(t *testing.T) {
	c := New()
	ctx := context.Background()

	var calls atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})

	compute := func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return 42, nil
	}

	const workers = 20
	results := make([]any, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCompute(ctx, "tech:BTC", time.Minute, compute)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load(), "slow compute must run exactly once")
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestGetOrCompute_FailureEvicted(t *testing.T) {
	c := New()
	ctx := context.Background()

	var calls atomic.Int64
	boom := errors.New("upstream down")

	_, err := c.GetOrCompute(ctx, "news:ETH", time.Minute, func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	// провал не должен отравить кеш: следующий вызов вычисляет заново
	v, err := c.GetOrCompute(ctx, "news:ETH", time.Minute, func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int64(2), calls.Load())
}

func TestGetOrCompute_FailedComputeKeepsNewerSet(t *testing.T) {
	c := New()
	ctx := context.Background()

	boom := errors.New("upstream down")
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := c.GetOrCompute(ctx, "ticker:BTCUSDT", time.Minute, func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return nil, boom
		})
		done <- err
	}()

	// пока вычисление в полете, ключ перезаписывается свежим значением
	<-started
	c.Set("ticker:BTCUSDT", "fresh", time.Minute)
	close(release)
	require.ErrorIs(t, <-done, boom)

	// провал вычисления не должен вытеснить более новую запись Set
	v, ok := c.Get("ticker:BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, "fresh", v)
}

func TestGetOrCompute_TTLExpiry(t *testing.T) {
	c := New()
	ctx := context.Background()

	current := time.Now()
	c.now = func() time.Time { return current }

	var calls atomic.Int64
	compute := func(ctx context.Context) (any, error) {
		return int(calls.Add(1)), nil
	}

	v, err := c.GetOrCompute(ctx, "ob:BTCUSDT", 5*time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// до истечения TTL отдается закешированное значение
	current = current.Add(4 * time.Minute)
	v, err = c.GetOrCompute(ctx, "ob:BTCUSDT", 5*time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// после истечения — пересчет
	current = current.Add(2 * time.Minute)
	v, err = c.GetOrCompute(ctx, "ob:BTCUSDT", 5*time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestGetAndSet(t *testing.T) {
	c := New()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", 7, time.Minute)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 7, v)

	current := time.Now().Add(2 * time.Minute)
	c.now = func() time.Time { return current }
	_, ok = c.Get("k")
	assert.False(t, ok, "expired value must not be returned")
}

func TestFetch_TypedWrapper(t *testing.T) {
	c := New()
	ctx := context.Background()

	v, err := Fetch(ctx, c, "typed", time.Minute, func(ctx context.Context) (string, error) {
		return "snapshot", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "snapshot", v)
}
