package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Zack-y11/e-commerce/internal/products"

	"github.com/redis/go-redis/v9"
)

// NewClient connects to addr and checks the server answers.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

type ProductCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewProductCache(client *redis.Client) *ProductCache {
	return &ProductCache{
		client:  client,
		baseTTL: 10 * time.Minute,
	}
}

func (r *ProductCache) Get(ctx context.Context, sku string) (*products.Product, error) {
	data, err := r.client.Get(ctx, cacheKey(sku)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, products.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var p products.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product failed: %w", err)
	}
	return &p, nil
}

// Set stores p with a jittered TTL so entries written together do not expire together.
func (r *ProductCache) Set(ctx context.Context, p *products.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(120)) * time.Second
	if err := r.client.Set(ctx, cacheKey(p.SKU), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *ProductCache) Delete(ctx context.Context, sku string) error {
	if err := r.client.Del(ctx, cacheKey(sku)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(sku string) string {
	return fmt.Sprintf("product:%s", sku)
}
