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
	FixturesSyncTaskParams struct {
		fx.In
		fxparams.Params
		Loader    ContextLoader
		Evaluator *window.Evaluator
		Queue     queue.Queue
	}

	fixturesSyncTask struct {
		trigger
		enabled bool
	}
)

// NewFixturesSync refreshes the fixture calendar once a day while the season
// is active. Fixture times shift as broadcasters reschedule matches, and the
// window predicates depend on them being current.
func NewFixturesSync(params FixturesSyncTaskParams) (Task, error) {
	return &fixturesSyncTask{
		trigger: newTrigger(
			"fixtures_sync",
			params.Logger,
			params.Loader,
			params.Evaluator,
			params.Queue,
		),
		enabled: !params.Config.Cron.DisableFixturesSync,
	}, nil
}

func (t *fixturesSyncTask) Name() string {
	return "fixtures_sync"
}

func (t *fixturesSyncTask) Spec() string {
	return "0 6 * * *"
}

func (t *fixturesSyncTask) Parallelism() int64 {
	return 1
}

func (t *fixturesSyncTask) Enabled() bool {
	return t.enabled
}

func (t *fixturesSyncTask) DelayStartDuration() time.Duration {
	return time.Minute
}

func (t *fixturesSyncTask) Run(ctx context.Context) error {
	windowCtx, ok, err := t.gate(ctx, func(c window.Context) bool {
		return c.Round != nil && t.evaluator.InSeasonWindow(c.Now)
	})
	if err != nil || !ok {
		return err
	}

	return t.enqueue(ctx, queue.Request{
		Type:    task.TypeRoundFixtures,
		Subject: task.RoundSubject(windowCtx.Round.ID),
		Source:  task.SourceCron,
	})
}
