package docs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisCache(t *testing.T, opts ...RedisOption) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	c := NewRedisCacheFromClient(client, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, mr := setupRedisCache(t, WithPrefix("test:"))
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "guides/faq.txt@e1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "guides/faq.txt@e1", "faq text"))
	assert.True(t, mr.Exists("test:guides/faq.txt@e1"))

	text, ok, err := c.Get(ctx, "guides/faq.txt@e1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "faq text", text)
}

func TestRedisCacheExpires(t *testing.T) {
	c, mr := setupRedisCache(t, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v"))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheBackendDown(t *testing.T) {
	c, mr := setupRedisCache(t)
	mr.Close()

	_, ok, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Ping(context.Background()))
}

func TestAssemblerWithRedisCache(t *testing.T) {
	c, _ := setupRedisCache(t)
	store := newFakeStore().put("faq.txt", "faq text")
	a := newTestAssembler(store, WithCache(c))
	ctx := context.Background()

	assert.Equal(t, "faq text", a.AllContext(ctx))
	assert.Equal(t, "faq text", a.AllContext(ctx))
	assert.Len(t, store.reads, 1)
}
