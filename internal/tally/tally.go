package tally

import (
	"context"

	"github.com/uber-go/tally/v4"
	"go.uber.org/fx"

	"github.com/tonglam/letletme-data-sub005/internal/config"
)

type (
	MetricParams struct {
		fx.In
		Lifecycle fx.Lifecycle
		Config    *config.Config
		Reporter  tally.StatsReporter
	}
)

var Module = fx.Options(
	fx.Provide(NewStatsReporter),
	fx.Provide(NewRootScope),
)

func NewRootScope(params MetricParams) tally.Scope {
	opts := tally.ScopeOptions{
		Prefix:   params.Config.App.Name,
		Reporter: params.Reporter,
		Tags: map[string]string{
			"env": string(params.Config.Env()),
		},
	}
	// The report interval is set on the reporter.
	scope, closer := tally.NewRootScope(opts, 0)
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return closer.Close()
		},
	})

	return scope
}
