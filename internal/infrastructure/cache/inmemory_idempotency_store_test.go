package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/reconciliation/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newStoreWithClock() (*InMemoryIdempotencyStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	s := NewInMemoryIdempotencyStore(0)
	s.now = clock.now
	return s, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	s, clock := newStoreWithClock()
	defer s.Close()

	first, err := s.MarkProcessed(ctx, "r1:ReceptionCreated", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.MarkProcessed(ctx, "r1:ReceptionCreated", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	processed, err := s.IsProcessed(ctx, "r1:ReceptionCreated")
	require.NoError(t, err)
	assert.True(t, processed)

	clock.advance(time.Hour)
	processed, err = s.IsProcessed(ctx, "r1:ReceptionCreated")
	require.NoError(t, err)
	assert.False(t, processed, "mark expires at ttl")

	renewed, err := s.MarkProcessed(ctx, "r1:ReceptionCreated", time.Hour)
	require.NoError(t, err)
	assert.True(t, renewed)
}

func TestInMemoryIdempotencyStore_Release(t *testing.T) {
	ctx := context.Background()
	s, _ := newStoreWithClock()
	defer s.Close()

	_, err := s.MarkProcessed(ctx, "k", time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "k"))
	require.NoError(t, s.Release(ctx, "absent"))

	again, err := s.MarkProcessed(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestInMemoryIdempotencyStore_Sweep(t *testing.T) {
	ctx := context.Background()
	s, clock := newStoreWithClock()
	defer s.Close()

	_, _ = s.MarkProcessed(ctx, "short-1", time.Minute)
	_, _ = s.MarkProcessed(ctx, "short-2", time.Minute)
	_, _ = s.MarkProcessed(ctx, "long", time.Hour)
	assert.Equal(t, 3, s.Len())

	clock.advance(2 * time.Minute)
	s.sweep()
	assert.Equal(t, 1, s.Len())
}

func TestInMemoryIdempotencyStore_SingleWinnerUnderContention(t *testing.T) {
	s := NewInMemoryIdempotencyStore(0)
	defer s.Close()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := s.MarkProcessed(context.Background(), "same", time.Hour); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestInMemoryIdempotencyStore_CloseIsIdempotent(t *testing.T) {
	s := NewInMemoryIdempotencyStore(time.Millisecond)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestIdempotencyStoreFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled redis uses memory", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: false}).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("unreachable redis falls back", func(t *testing.T) {
		cfg := config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}
		store, err := NewIdempotencyStoreFactory(cfg).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("unreachable redis without fallback fails", func(t *testing.T) {
		cfg := config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}
		_, err := NewIdempotencyStoreFactory(cfg, WithInMemoryFallback(false)).CreateStore(ctx)
		assert.Error(t, err)
	})
}
