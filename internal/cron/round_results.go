package cron

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/tonglam/letletme-data-sub005/internal/queue"
	"github.com/tonglam/letletme-data-sub005/internal/task"
	"github.com/tonglam/letletme-data-sub005/internal/utils/fxparams"
	"github.com/tonglam/letletme-data-sub005/internal/window"
)

type (
	RoundResultsTaskParams struct {
		fx.In
		fxparams.Params
		Loader    ContextLoader
		Evaluator *window.Evaluator
		Queue     queue.Queue
	}

	roundResultsTask struct {
		trigger
		enabled bool
	}
)

// NewRoundResults settles the round once every fixture has finished.
// Completion cascades into the five derived standings tasks.
func NewRoundResults(params RoundResultsTaskParams) (Task, error) {
	return &roundResultsTask{
		trigger: newTrigger(
			"round_results",
			params.Logger,
			params.Loader,
			params.Evaluator,
			params.Queue,
		),
		enabled: !params.Config.Cron.DisableRoundResults,
	}, nil
}

func (t *roundResultsTask) Name() string {
	return "round_results"
}

func (t *roundResultsTask) Spec() string {
	return "@every 30m"
}

func (t *roundResultsTask) Parallelism() int64 {
	return 1
}

func (t *roundResultsTask) Enabled() bool {
	return t.enabled
}

func (t *roundResultsTask) DelayStartDuration() time.Duration {
	return time.Minute
}

func (t *roundResultsTask) Run(ctx context.Context) error {
	windowCtx, ok, err := t.gate(ctx, t.evaluator.InPostMatchWindow)
	if err != nil || !ok {
		return err
	}

	return t.enqueue(ctx, queue.Request{
		Type:    task.TypeRoundResults,
		Subject: task.RoundSubject(windowCtx.Round.ID),
		Source:  task.SourceCron,
	})
}
