package transport

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"deliverytrack/internal/model"
)

// RedisCache implements SnapshotCache over Redis so several tracker
// processes can share fetched snapshots.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(url string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisCache{rdb: redis.NewClient(opt)}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(rdb *redis.Client) *RedisCache { return &RedisCache{rdb: rdb} }

func (c *RedisCache) Get(ctx context.Context, orderID int) (model.TrackingSnapshot, bool, error) {
	b, err := c.rdb.Get(ctx, cacheKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.TrackingSnapshot{}, false, nil
	}
	if err != nil {
		return model.TrackingSnapshot{}, false, err
	}
	var snap model.TrackingSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		// a stale or foreign value; treat as a miss and let Set overwrite it
		return model.TrackingSnapshot{}, false, nil
	}
	return snap, true, nil
}

func (c *RedisCache) Set(ctx context.Context, orderID int, snap model.TrackingSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return c.rdb.Set(ctx, cacheKey(orderID), data, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, orderIDs ...int) error {
	if len(orderIDs) == 0 {
		return nil
	}
	keys := make([]string, len(orderIDs))
	for i, id := range orderIDs {
		keys[i] = cacheKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *RedisCache) Close() error { return c.rdb.Close() }

func cacheKey(orderID int) string { return "tracking:" + strconv.Itoa(orderID) }
