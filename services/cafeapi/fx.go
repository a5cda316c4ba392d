package cafeapi

import (
	"fredscafe-rewards/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cafeapi",
	fx.Provide(newClientFromConfig),
)

type clientParams struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger `optional:"true"`
}

func newClientFromConfig(p clientParams) Client {
	return NewHTTPClient(Options{
		BaseURL:    p.Config.CafeAPI.BaseURL,
		Token:      p.Config.CafeAPI.Token,
		Timeout:    p.Config.CafeAPI.Timeout,
		RetryCount: p.Config.CafeAPI.RetryCount,
		Logger:     p.Logger,
	})
}
