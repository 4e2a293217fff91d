package queue

import (
	"context"

	"go.uber.org/fx"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/config"
	"github.com/tonglam/letletme-data-sub005/internal/utils/fxparams"
)

type (
	FactoryParams struct {
		fx.In
		fxparams.Params
		Lifecycle fx.Lifecycle
		Memory    Factory `name:"queue/memory"`
		SQLite    Factory `name:"queue/sqlite"`
	}

	memoryFactory struct {
		params fxparams.Params
	}

	sqliteFactory struct {
		params fxparams.Params
	}
)

var Module = fx.Options(
	fx.Provide(fx.Annotated{
		Name:   "queue/memory",
		Target: NewMemoryFactory,
	}),
	fx.Provide(fx.Annotated{
		Name:   "queue/sqlite",
		Target: NewSQLiteFactory,
	}),
	fx.Provide(WithQueueFactory),
)

func NewMemoryFactory(params fxparams.Params) Factory {
	return &memoryFactory{params: params}
}

func (f *memoryFactory) Create() (Queue, error) {
	return NewMemory(f.params.Config, f.params.Logger, f.params.Metrics), nil
}

func NewSQLiteFactory(params fxparams.Params) Factory {
	return &sqliteFactory{params: params}
}

func (f *sqliteFactory) Create() (Queue, error) {
	return NewSQLite(f.params.Config, f.params.Logger, f.params.Metrics)
}

func WithQueueFactory(params FactoryParams) (Queue, error) {
	var factory Factory
	backend := params.Config.Queue.Backend
	switch backend {
	case config.QueueBackendMemory:
		factory = params.Memory
	case config.QueueBackendSQLite:
		factory = params.SQLite
	}
	if factory == nil {
		return nil, xerrors.Errorf("queue backend is not implemented: %v", backend)
	}

	q, err := factory.Create()
	if err != nil {
		return nil, xerrors.Errorf("failed to create queue of backend %v: %w", backend, err)
	}

	params.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return q.Close()
		},
	})
	return q, nil
}
