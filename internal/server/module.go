package server

import (
	"context"

	"go.uber.org/fx"

	"github.com/tonglam/letletme-data-sub005/internal/queue"
	"github.com/tonglam/letletme-data-sub005/internal/utils/fxparams"
)

type (
	ServerParams struct {
		fx.In
		fxparams.Params
		Lifecycle fx.Lifecycle
		Queue     queue.Queue
	}
)

var Module = fx.Options(
	fx.Provide(NewServer),
)

func NewServer(params ServerParams) *Server {
	s := New(params.Config, params.Logger, params.Metrics, params.Queue)
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			return s.Shutdown(ctx)
		},
	})
	return s
}
