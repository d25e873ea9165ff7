package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// CustomerCache remembers which provider customer belongs to an e-mail.
type CustomerCache interface {
	Get(ctx context.Context, email string) (string, error)
	Set(ctx context.Context, email, customerID string) error
}

type RedisCustomerCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCustomerCache(client *redis.Client) *RedisCustomerCache {
	return &RedisCustomerCache{client: client, ttl: 24 * time.Hour}
}

func (c *RedisCustomerCache) Get(ctx context.Context, email string) (string, error) {
	id, err := c.client.Get(ctx, customerKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return id, nil
}

func (c *RedisCustomerCache) Set(ctx context.Context, email, customerID string) error {
	if err := c.client.Set(ctx, customerKey(email), customerID, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func customerKey(email string) string {
	return fmt.Sprintf("payment:customer:%s", strings.ToLower(email))
}
