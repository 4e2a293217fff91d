package fpl

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tonglam/letletme-data-sub005/internal/config"
	"github.com/tonglam/letletme-data-sub005/internal/utils/log"
)

var Module = fx.Options(
	fx.Provide(func(cfg *config.Config, logger *zap.Logger) Client {
		return WithRateLimit(NewHTTPClient(cfg, log.WithPackage(logger)), cfg)
	}),
	// The real repository lives in the data service; the orchestrator ships
	// with the logging no-op until that integration is wired in.
	fx.Provide(func(logger *zap.Logger) Repository {
		return NewNopRepository(log.WithPackage(logger))
	}),
)
