package redis

import (
	"context"
	"testing"
	"time"

	"github.com/Zack-y11/e-commerce/internal/products"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*ProductCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewProductCache(client), mr
}

func TestProductCache_SetGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	p := &products.Product{ID: "p-1", SKU: "SKU-1", Name: "Mug", Price: decimal.RequireFromString("12.50"), IsActive: true}
	require.NoError(t, cache.Set(ctx, p))
	assert.True(t, mr.Exists("product:SKU-1"))

	ttl := mr.TTL("product:SKU-1")
	assert.GreaterOrEqual(t, ttl, 10*time.Minute)
	assert.Less(t, ttl, 12*time.Minute)

	got, err := cache.Get(ctx, "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, "Mug", got.Name)
	assert.True(t, p.Price.Equal(got.Price))
}

func TestProductCache_Miss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	got, err := cache.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, products.ErrCacheMiss)
	assert.Nil(t, got)
}

func TestProductCache_Expiry(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &products.Product{SKU: "SKU-2"}))
	mr.FastForward(13 * time.Minute)

	_, err := cache.Get(ctx, "SKU-2")
	assert.ErrorIs(t, err, products.ErrCacheMiss)
}

func TestProductCache_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("product:SKU-3", "{not json"))

	_, err := cache.Get(context.Background(), "SKU-3")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, products.ErrCacheMiss)
}

func TestProductCache_Delete(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &products.Product{SKU: "SKU-4"}))
	require.NoError(t, cache.Delete(ctx, "SKU-4"))
	assert.False(t, mr.Exists("product:SKU-4"))
}
