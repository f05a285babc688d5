// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// backends returns every Cache implementation under test, freshly built.
func backends() map[string]func(t *testing.T) Cache {
	return map[string]func(t *testing.T) Cache{
		"memory": func(*testing.T) Cache { return NewMemoryCache(0) },
		"redis": func(t *testing.T) Cache {
			_, c := setupMiniRedis(t)
			return c
		},
	}
}

func TestCacheContract(t *testing.T) {
	for name, build := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := build(t)

			buf := []byte("original")
			c.Set(ctx, "k", buf, time.Minute)
			buf[0] = 'X'

			got, ok := c.Get(ctx, "k")
			require.True(t, ok)
			assert.Equal(t, "original", string(got), "cache must keep its own copy")

			_, ok = c.Get(ctx, "absent")
			assert.False(t, ok)

			st := c.Stats()
			assert.Equal(t, CacheStats{Hits: 1, Misses: 1, Sets: 1, CurrentSize: 1}, st)

			c.Delete(ctx, "k")
			_, ok = c.Get(ctx, "k")
			assert.False(t, ok, "deleted key still served")
			assert.Zero(t, c.Stats().CurrentSize)
		})
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(0)

	cache.Set(ctx, "shortlived", []byte("value"), 50*time.Millisecond)

	_, ok := cache.Get(ctx, "shortlived")
	require.True(t, ok)

	time.Sleep(100 * time.Millisecond)

	_, ok = cache.Get(ctx, "shortlived")
	assert.False(t, ok, "expected key to be expired")
}

func TestMemoryCache_SweeperEvicts(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx := context.Background()
	cache := NewMemoryCache(20 * time.Millisecond)
	defer cache.Close()

	cache.Set(ctx, "a", []byte("1"), 10*time.Millisecond)
	cache.Set(ctx, "b", []byte("2"), time.Hour)

	assert.Eventually(t, func() bool {
		s := cache.Stats()
		return s.CurrentSize == 1 && s.Evictions == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, cache.Close())
	require.NoError(t, cache.Close(), "Close is idempotent")
}

func TestNoOpCache(t *testing.T) {
	ctx := context.Background()
	cache := NewNoOpCache()

	cache.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := cache.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, CacheStats{}, cache.Stats())
	assert.NoError(t, cache.Close())
}

func TestObserve_ReportsUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewMemoryCache(0)
	c.Set(context.Background(), "k", []byte("v"), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	sizes := make(chan int, 16)
	done := make(chan error, 1)
	go func() {
		done <- Observe(ctx, c, 5*time.Millisecond, func(s CacheStats) {
			select {
			case sizes <- s.CurrentSize:
			default:
			}
		})
	}()

	assert.Equal(t, 1, <-sizes)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Observe did not return after cancellation")
	}
}
