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
	PicksSyncTaskParams struct {
		fx.In
		fxparams.Params
		Loader    ContextLoader
		Evaluator *window.Evaluator
		Queue     queue.Queue
	}

	picksSyncTask struct {
		trigger
		enabled bool
	}
)

// NewPicksSync enqueues a round-picks task while team selections can still
// change, i.e. before the round's first kickoff. Completion of the root fans
// out one entry-picks task per tracked entry.
func NewPicksSync(params PicksSyncTaskParams) (Task, error) {
	return &picksSyncTask{
		trigger: newTrigger(
			"picks_sync",
			params.Logger,
			params.Loader,
			params.Evaluator,
			params.Queue,
		),
		enabled: !params.Config.Cron.DisablePicksSync,
	}, nil
}

func (t *picksSyncTask) Name() string {
	return "picks_sync"
}

func (t *picksSyncTask) Spec() string {
	return "@every 10m"
}

func (t *picksSyncTask) Parallelism() int64 {
	return 1
}

func (t *picksSyncTask) Enabled() bool {
	return t.enabled
}

func (t *picksSyncTask) DelayStartDuration() time.Duration {
	return time.Minute
}

func (t *picksSyncTask) Run(ctx context.Context) error {
	windowCtx, ok, err := t.gate(ctx, t.evaluator.InSelectionWindow)
	if err != nil || !ok {
		return err
	}

	return t.enqueue(ctx, queue.Request{
		Type:    task.TypeRoundPicks,
		Subject: task.RoundSubject(windowCtx.Round.ID),
		Source:  task.SourceCron,
	})
}
