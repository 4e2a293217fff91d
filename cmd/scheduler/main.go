package main

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tonglam/letletme-data-sub005/internal/cascade"
	"github.com/tonglam/letletme-data-sub005/internal/config"
	"github.com/tonglam/letletme-data-sub005/internal/cron"
	"github.com/tonglam/letletme-data-sub005/internal/executor"
	"github.com/tonglam/letletme-data-sub005/internal/fpl"
	"github.com/tonglam/letletme-data-sub005/internal/queue"
	"github.com/tonglam/letletme-data-sub005/internal/server"
	"github.com/tonglam/letletme-data-sub005/internal/services"
	"github.com/tonglam/letletme-data-sub005/internal/sync"
	"github.com/tonglam/letletme-data-sub005/internal/tally"
	"github.com/tonglam/letletme-data-sub005/internal/utils/fxparams"
	"github.com/tonglam/letletme-data-sub005/internal/utils/timesource"
	"github.com/tonglam/letletme-data-sub005/internal/window"
)

func main() {
	manager := startManager()
	manager.WaitForInterrupt()
}

func appOptions(manager services.SystemManager, opts ...fx.Option) []fx.Option {
	return append(
		opts,
		cascade.Module,
		config.Module,
		cron.Module,
		executor.Module,
		fpl.Module,
		fxparams.Module,
		queue.Module,
		server.Module,
		sync.Module,
		tally.Module,
		window.Module,
		fx.NopLogger,
		fx.Provide(func() services.SystemManager { return manager }),
		fx.Provide(func() *zap.Logger { return manager.Logger() }),
		fx.Provide(timesource.NewRealTimeSource),
		fx.Invoke(cron.RegisterRunner),
		fx.Invoke(func(*executor.Executor) {}),
		fx.Invoke(func(*server.Server) {}),
	)
}

func startManager(opts ...fx.Option) services.SystemManager {
	manager := services.NewManager()
	logger := manager.Logger()
	ctx := manager.Context()

	app := fx.New(appOptions(manager, opts...)...)

	if err := app.Start(ctx); err != nil {
		logger.Fatal("failed to start app", zap.Error(err))
	}
	manager.AddPreShutdownHook(func() {
		logger.Info("shutting down scheduler")
		if err := app.Stop(ctx); err != nil {
			logger.Error("failed to stop app", zap.Error(err))
		}
	})

	logger.Info("started scheduler")
	return manager
}
