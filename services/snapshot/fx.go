package snapshot

import (
	"fredscafe-rewards/pkg/config"
	"fredscafe-rewards/services/cafeapi"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("snapshot",
	fx.Provide(
		newCatalogCache,
		newStoreFromConfig,
	),
)

type cacheParams struct {
	fx.In

	Config *config.Config
	Redis  *redis.Client `optional:"true"`
	Logger *zap.Logger   `optional:"true"`
}

func newCatalogCache(p cacheParams) CatalogCache {
	if p.Redis != nil {
		return NewRedisCatalogCache(p.Redis, p.Config.Rewards.CatalogTTL, p.Logger)
	}
	return NewMemoryCatalogCache(p.Config.Rewards.CatalogTTL)
}

type storeParams struct {
	fx.In

	Config  *config.Config
	Client  cafeapi.Client
	Catalog CatalogCache
	Logger  *zap.Logger `optional:"true"`
}

func newStoreFromConfig(p storeParams) *Store {
	return NewStore(p.Client, p.Catalog, p.Config.Rewards.SnapshotTTL, WithLogger(p.Logger))
}
