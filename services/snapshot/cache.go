package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"fredscafe-rewards/pkg/rediskey"
	"fredscafe-rewards/services/eligibility"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_catalog_cache_hits_total",
		Help: "Reward catalog lookups served from cache.",
	}, []string{"backend"})
	cacheMiss = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_catalog_cache_miss_total",
		Help: "Reward catalog lookups that went to the cafe API.",
	}, []string{"backend"})
)

// CatalogCache holds the reward catalog shared by all customers. Failures
// are reported as misses.
type CatalogCache interface {
	Get(ctx context.Context) ([]eligibility.RewardDefinition, bool)
	Set(ctx context.Context, catalog []eligibility.RewardDefinition)
	Invalidate(ctx context.Context)
}

type cachedCatalog struct {
	rewards   []eligibility.RewardDefinition
	updatedAt time.Time
}

type MemoryCatalogCache struct {
	mu   sync.RWMutex
	item *cachedCatalog
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryCatalogCache(ttl time.Duration) *MemoryCatalogCache {
	return &MemoryCatalogCache{ttl: ttl, now: time.Now}
}

func (c *MemoryCatalogCache) Get(context.Context) ([]eligibility.RewardDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := c.item
	if v == nil || (c.ttl > 0 && c.now().Sub(v.updatedAt) > c.ttl) {
		cacheMiss.WithLabelValues("memory").Inc()
		return nil, false
	}
	cacheHits.WithLabelValues("memory").Inc()
	return v.rewards, true
}

func (c *MemoryCatalogCache) Set(_ context.Context, catalog []eligibility.RewardDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.item = &cachedCatalog{rewards: catalog, updatedAt: c.now()}
}

func (c *MemoryCatalogCache) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.item = nil
}

// RedisCatalogCache shares the catalog between replicas. Entries are the
// catalog's wire JSON so criteria are re-read on every load.
type RedisCatalogCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	key    string
	logger *zap.Logger
}

func NewRedisCatalogCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCatalogCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCatalogCache{
		rdb:    rdb,
		ttl:    ttl,
		key:    rediskey.BuildCatalogKey(),
		logger: logger,
	}
}

func (c *RedisCatalogCache) Get(ctx context.Context) ([]eligibility.RewardDefinition, bool) {
	data, err := c.rdb.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("catalog cache read failed", zap.Error(err))
		}
		cacheMiss.WithLabelValues("redis").Inc()
		return nil, false
	}

	var catalog []eligibility.RewardDefinition
	if err := json.Unmarshal(data, &catalog); err != nil {
		c.logger.Warn("catalog cache entry unreadable", zap.Error(err))
		cacheMiss.WithLabelValues("redis").Inc()
		return nil, false
	}

	cacheHits.WithLabelValues("redis").Inc()
	return catalog, true
}

func (c *RedisCatalogCache) Set(ctx context.Context, catalog []eligibility.RewardDefinition) {
	data, err := json.Marshal(catalog)
	if err != nil {
		c.logger.Warn("catalog cache encode failed", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write failed", zap.Error(err))
	}
}

func (c *RedisCatalogCache) Invalidate(ctx context.Context) {
	if err := c.rdb.Del(ctx, c.key).Err(); err != nil {
		c.logger.Warn("catalog cache invalidate failed", zap.Error(err))
	}
}
