package main

import (
	"github.com/uber-go/tally/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/config"
	"github.com/tonglam/letletme-data-sub005/internal/utils/fxparams"
	"github.com/tonglam/letletme-data-sub005/internal/utils/log"
	"github.com/tonglam/letletme-data-sub005/internal/utils/timesource"
)

const (
	envFlagName = "env"
)

type (
	CmdApp interface {
		Close()
		Config() *config.Config
	}

	cmdAppImpl struct {
		app    *fx.App
		config *config.Config
	}
)

var (
	commonFlags struct {
		env string
	}

	logger *zap.Logger
)

func init() {
	logger = log.NewDevelopment()
	rootCmd.PersistentFlags().StringVar(&commonFlags.env, envFlagName, "local", "one of local, development, or production")
}

// startApp builds a short-lived fx app sharing the scheduler's config and
// queue backend, so CLI submissions dedup against cron-enqueued tasks.
func startApp(opts ...fx.Option) (CmdApp, error) {
	cfg, err := config.New(config.WithEnvironment(config.Env(commonFlags.env)))
	if err != nil {
		return nil, xerrors.Errorf("failed to load config: %w", err)
	}

	var populated *config.Config
	opts = append(
		opts,
		config.Module,
		config.WithCustomConfig(cfg),
		fxparams.Module,
		fx.NopLogger,
		fx.Provide(func() *zap.Logger { return logger }),
		fx.Provide(func() tally.Scope { return tally.NoopScope }),
		fx.Provide(timesource.NewRealTimeSource),
		fx.Populate(&populated),
	)

	app := fx.New(opts...)
	if err := app.Start(rootCmd.Context()); err != nil {
		return nil, xerrors.Errorf("failed to start app: %w", err)
	}

	return &cmdAppImpl{
		app:    app,
		config: populated,
	}, nil
}

func (a *cmdAppImpl) Close() {
	if err := a.app.Stop(rootCmd.Context()); err != nil {
		logger.Error("failed to stop app", zap.Error(err))
	}
}

func (a *cmdAppImpl) Config() *config.Config {
	return a.config
}
