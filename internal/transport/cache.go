package transport

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"deliverytrack/internal/metrics"
	"deliverytrack/internal/model"
)

// SnapshotCache stores tracking snapshots by order id.
type SnapshotCache interface {
	Get(ctx context.Context, orderID int) (model.TrackingSnapshot, bool, error)
	Set(ctx context.Context, orderID int, snap model.TrackingSnapshot, ttl time.Duration) error
	Delete(ctx context.Context, orderIDs ...int) error
}

// CachedClient serves GetOrderTracking from a SnapshotCache. Entries are
// dropped by Invalidate when the tracker reports the order changed, and
// expire after TTL otherwise. Cache failures fall through to the backend.
type CachedClient struct {
	Client
	Cache SnapshotCache
	TTL   time.Duration
	Log   *zap.Logger
}

func NewCachedClient(c Client, cache SnapshotCache, ttl time.Duration, log *zap.Logger) *CachedClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedClient{Client: c, Cache: cache, TTL: ttl, Log: log}
}

func (c *CachedClient) GetOrderTracking(ctx context.Context, orderID int) (model.TrackingSnapshot, error) {
	snap, ok, err := c.Cache.Get(ctx, orderID)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.Log.Warn("tracking cache get failed", zap.Int("order_id", orderID), zap.Error(err))
	case ok:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return snap, nil
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	snap, err = c.Client.GetOrderTracking(ctx, orderID)
	if err != nil {
		return model.TrackingSnapshot{}, err
	}
	if err := c.Cache.Set(ctx, orderID, snap, c.TTL); err != nil {
		c.Log.Warn("tracking cache set failed", zap.Int("order_id", orderID), zap.Error(err))
	}
	return snap, nil
}

// Invalidate drops cached snapshots so the next read goes to the backend.
func (c *CachedClient) Invalidate(ctx context.Context, orderIDs ...int) {
	if len(orderIDs) == 0 {
		return
	}
	if err := c.Cache.Delete(ctx, orderIDs...); err != nil {
		c.Log.Warn("tracking cache invalidate failed", zap.Ints("order_ids", orderIDs), zap.Error(err))
	}
}

type memEntry struct {
	snap    model.TrackingSnapshot
	expires time.Time
}

// MemoryCache is the in-process SnapshotCache used when no Redis is configured.
type MemoryCache struct {
	mu  sync.Mutex
	m   map[int]memEntry
	now func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: map[int]memEntry{}, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, orderID int) (model.TrackingSnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[orderID]
	if !ok {
		return model.TrackingSnapshot{}, false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.m, orderID)
		return model.TrackingSnapshot{}, false, nil
	}
	return e.snap, true, nil
}

// Set stores snap; ttl <= 0 keeps it until deleted.
func (c *MemoryCache) Set(_ context.Context, orderID int, snap model.TrackingSnapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memEntry{snap: snap}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.m[orderID] = e
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, orderIDs ...int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range orderIDs {
		delete(c.m, id)
	}
	return nil
}
