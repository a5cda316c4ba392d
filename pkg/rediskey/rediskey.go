package rediskey

import "fmt"

// Rewards keys (global convention across services)
const (
	RewardsPrefix  = "rewards"
	CatalogPrefix  = "rewards:catalog"
	catalogVersion = "v1"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildCatalogKey returns "rewards:catalog:v1"
func BuildCatalogKey() string {
	return NamespaceKey(CatalogPrefix, catalogVersion)
}
