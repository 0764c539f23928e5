package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	orderStatusKeyPrefix = "order:status:"
	idempotencyKeyTTL    = 24 * time.Hour
	statusCacheTTL       = 5 * time.Minute
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// SetIdempotency marks a key as seen; false means a previous caller got
// there first. Used as the webhook fast-path — MySQL stays authoritative.
func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *RedisAdapter) IdempotencySeen(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisAdapter) CacheOrderStatus(ctx context.Context, orderID, buyerID, status string) error {
	return r.client.Set(ctx, orderStatusKeyPrefix+orderID, buyerID+"|"+status, statusCacheTTL).Err()
}

func (r *RedisAdapter) CachedOrderStatus(ctx context.Context, orderID string) (string, string, error) {
	s, err := r.client.Get(ctx, orderStatusKeyPrefix+orderID).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	buyerID, status, ok := strings.Cut(s, "|")
	if !ok {
		// Unparseable entry reads as a miss; storage re-fills it.
		return "", "", nil
	}
	return buyerID, status, nil
}

func (r *RedisAdapter) InvalidateOrderStatus(ctx context.Context, orderID string) error {
	return r.client.Del(ctx, orderStatusKeyPrefix+orderID).Err()
}
