package claim

import (
	"fredscafe-rewards/services/cafeapi"
	"fredscafe-rewards/services/snapshot"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("claim",
	fx.Provide(
		NewRepository,
		func(c cafeapi.Client) Claimer { return c },
		func(s *snapshot.Store) Refresher { return s },
		NewOrchestrator,
	),
	fx.Invoke(migrate),
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Attempt{})
}
