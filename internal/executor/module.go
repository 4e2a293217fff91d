package executor

import (
	"context"

	"go.uber.org/fx"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/cascade"
	"github.com/tonglam/letletme-data-sub005/internal/queue"
	"github.com/tonglam/letletme-data-sub005/internal/utils/fxparams"
	"github.com/tonglam/letletme-data-sub005/internal/utils/timesource"
)

type (
	ExecutorParams struct {
		fx.In
		fxparams.Params
		Lifecycle  fx.Lifecycle
		TimeSource timesource.TimeSource
		Queue      queue.Queue
		Cascade    *cascade.Engine
		Handlers   []Handler `group:"handler"`
	}
)

var Module = fx.Options(
	fx.Provide(NewExecutor),
)

// NewExecutor wires the executor into the fx lifecycle: workers start with
// the app and drain on shutdown before the queue closes.
func NewExecutor(params ExecutorParams) (*Executor, error) {
	e, err := New(
		params.Logger,
		params.Metrics,
		params.TimeSource,
		params.Queue,
		params.Cascade,
		params.Handlers,
		params.Config.Executor.Workers,
	)
	if err != nil {
		return nil, xerrors.Errorf("failed to create executor: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			e.Start(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			e.Wait()
			return nil
		},
	})
	return e, nil
}
