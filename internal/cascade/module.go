package cascade

import (
	"go.uber.org/fx"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/fpl"
	"github.com/tonglam/letletme-data-sub005/internal/queue"
	"github.com/tonglam/letletme-data-sub005/internal/utils/fxparams"
)

type (
	EngineParams struct {
		fx.In
		fxparams.Params
		Queue      queue.Queue
		Repository fpl.Repository
	}
)

var Module = fx.Options(
	fx.Provide(New),
)

func New(params EngineParams) (*Engine, error) {
	if err := Validate(); err != nil {
		return nil, xerrors.Errorf("failed to validate cascade defs: %w", err)
	}
	return NewEngine(params.Logger, params.Metrics, params.Queue, params.Repository), nil
}
