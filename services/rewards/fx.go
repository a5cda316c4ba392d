package rewards

import (
	"fredscafe-rewards/pkg/server"
	"fredscafe-rewards/services/claim"
	"fredscafe-rewards/services/snapshot"

	"go.uber.org/fx"
)

var Module = fx.Module("rewards",
	fx.Provide(
		func(s *snapshot.Store) Snapshots { return s },
		func(o *claim.Orchestrator) Claims { return o },
		server.AsRoutes(NewHandler),
	),
)
