package main

import (
	"log"

	"fredscafe-rewards/pkg/config"
	"fredscafe-rewards/pkg/db"
	"fredscafe-rewards/pkg/gen"
	"fredscafe-rewards/pkg/health"
	"fredscafe-rewards/pkg/logger"
	"fredscafe-rewards/pkg/redis"
	"fredscafe-rewards/pkg/server"
	"fredscafe-rewards/services/cafeapi"
	"fredscafe-rewards/services/claim"
	"fredscafe-rewards/services/eligibility"
	"fredscafe-rewards/services/rewards"
	"fredscafe-rewards/services/snapshot"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		health.Module,
		eligibility.Module,
		cafeapi.Module,
		snapshot.Module,
		claim.Module,
		rewards.Module,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "development" {
		return &fxevent.ZapLogger{Logger: logger.Named("fx")}
	}
	return fxevent.NopLogger
})
