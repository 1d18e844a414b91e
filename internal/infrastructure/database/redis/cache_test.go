package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

type cachedResult struct {
	Status     string    `json:"status"`
	Energies   []float64 `json:"energies"`
	Conformers int       `json:"conformers"`
}

func newTestCache(t *testing.T) (Cache, *Client) {
	t.Helper()
	client, _ := newTestClient(t)
	return NewRedisCache(client, logging.NewNopLogger(), WithPrefix("test:"), WithDefaultTTL(time.Hour)), client
}

func TestCache_SetGet(t *testing.T) {
	cache, client := newTestCache(t)
	ctx := context.Background()
	in := cachedResult{Status: "SUCCESS", Energies: []float64{1.5, 2.25}, Conformers: 2}

	require.NoError(t, cache.Set(ctx, "mol1", in, 0))
	var out cachedResult
	require.NoError(t, cache.Get(ctx, "mol1", &out))
	assert.Equal(t, in, out)

	ttl, err := client.PTTL(ctx, "test:mol1").Result()
	require.NoError(t, err)
	assert.InDelta(t, float64(time.Hour), float64(ttl), float64(7*time.Minute))

	ok, err := cache.Exists(ctx, "mol1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, cache.Delete(ctx, "mol1"))
	assert.ErrorIs(t, cache.Get(ctx, "mol1", &out), ErrCacheMiss)
}

func TestCache_GetDecodeError(t *testing.T) {
	cache, client := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "test:bad", "{not json", 0).Err())

	var out cachedResult
	err := cache.Get(ctx, "bad", &out)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}

func TestCache_GetOrLoad(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	var loads atomic.Int32
	loader := func(context.Context) (interface{}, error) {
		loads.Add(1)
		time.Sleep(20 * time.Millisecond)
		return cachedResult{Status: "SUCCESS", Conformers: 7}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out cachedResult
			_, err := cache.GetOrLoad(ctx, "shared", &out, 0, loader)
			assert.NoError(t, err)
			assert.Equal(t, 7, out.Conformers)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), loads.Load())

	var out cachedResult
	hit, err := cache.GetOrLoad(ctx, "shared", &out, 0, loader)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int32(1), loads.Load())
}

func TestCache_GetOrLoadNil(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	var out cachedResult
	hit, err := cache.GetOrLoad(ctx, "empty", &out, 0, func(context.Context) (interface{}, error) { return nil, nil })
	assert.False(t, hit)
	assert.ErrorIs(t, err, ErrCacheMiss)

	ok, err := cache.Exists(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, cache.Get(ctx, "empty", &out), ErrCacheMiss)

	loads := 0
	_, err = cache.GetOrLoad(ctx, "empty", &out, 0, func(context.Context) (interface{}, error) {
		loads++
		return cachedResult{}, nil
	})
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Zero(t, loads, "null marker suppresses reloading")
}

func TestCache_GetOrLoadError(t *testing.T) {
	cache, _ := newTestCache(t)
	boom := errors.New(errors.ErrCodeConfGenEmbeddingFailed, "boom")
	var out cachedResult
	_, err := cache.GetOrLoad(context.Background(), "x", &out, 0, func(context.Context) (interface{}, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestCache_DeleteByPrefix(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	for _, k := range []string{"run:1", "run:2", "run:3", "other"} {
		require.NoError(t, cache.Set(ctx, k, cachedResult{}, 0))
	}
	n, err := cache.DeleteByPrefix(ctx, "run:")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	ok, _ := cache.Exists(ctx, "other")
	assert.True(t, ok)
}

//Personal.AI order the ending
