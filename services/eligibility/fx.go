package eligibility

import (
	"fredscafe-rewards/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("eligibility",
	fx.Provide(newEngineFromConfig),
)

type engineParams struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger `optional:"true"`
}

func newEngineFromConfig(p engineParams) (*Engine, error) {
	loc, err := p.Config.Location()
	if err != nil {
		return nil, err
	}

	return NewEngine(
		WithLocation(loc),
		WithLenientCriteria(p.Config.Rewards.LenientCriteria),
		WithLogger(p.Logger),
	), nil
}
