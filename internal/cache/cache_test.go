package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"restodash/pkg/models"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	cache, err := NewRedis(context.Background(), "redis://"+server.Addr(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return cache, server
}

func TestRedisRoundTrip(t *testing.T) {
	cache, server := newTestRedis(t)
	ctx := context.Background()

	master := models.MasterArticle{ID: "ma-1", Name: "Beurre doux", Unit: "kg"}
	require.NoError(t, cache.Set(ctx, MasterArticleKey("ma-1"), master))

	assert.True(t, server.Exists("restodash:master_article:ma-1"))
	assert.Equal(t, time.Minute, server.TTL("restodash:master_article:ma-1"))

	var got models.MasterArticle
	found, err := cache.Get(ctx, MasterArticleKey("ma-1"), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, master, got)
}

func TestRedisMissAndExpiry(t *testing.T) {
	cache, server := newTestRedis(t)
	ctx := context.Background()

	var got []models.MarketSupplier
	found, err := cache.Get(ctx, MarketSuppliersKey, &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, MarketSuppliersKey, []models.MarketSupplier{{ID: "m1", Name: "Metro"}}))
	server.FastForward(2 * time.Minute)

	found, err = cache.Get(ctx, MarketSuppliersKey, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisUndecodableValueIsAMiss(t *testing.T) {
	cache, server := newTestRedis(t)

	require.NoError(t, server.Set("restodash:master_article:bad", "{not json"))

	var got models.MasterArticle
	found, err := cache.Get(context.Background(), MasterArticleKey("bad"), &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "http://nope", time.Minute)
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	require.NoError(t, c.Set(context.Background(), "k", 1))

	var v int
	found, err := c.Get(context.Background(), "k", &v)
	require.NoError(t, err)
	assert.False(t, found)
}
