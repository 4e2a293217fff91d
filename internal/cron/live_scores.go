package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/tonglam/letletme-data-sub005/internal/queue"
	"github.com/tonglam/letletme-data-sub005/internal/task"
	"github.com/tonglam/letletme-data-sub005/internal/utils/fxparams"
	"github.com/tonglam/letletme-data-sub005/internal/window"
)

type (
	LiveScoresTaskParams struct {
		fx.In
		fxparams.Params
		Loader    ContextLoader
		Evaluator *window.Evaluator
		Queue     queue.Queue
	}

	liveScoresTask struct {
		trigger
		enabled  bool
		interval time.Duration
	}
)

const defaultLiveScoresInterval = time.Minute

// NewLiveScores polls live match scores at a high frequency while matches are
// being played. The dedup key carries a time bucket truncated to the polling
// interval so that each period gets exactly one instance, however many ticks
// fire within it.
func NewLiveScores(params LiveScoresTaskParams) (Task, error) {
	interval := params.Config.Cron.LiveScoresInterval
	if interval <= 0 {
		interval = defaultLiveScoresInterval
	}

	return &liveScoresTask{
		trigger: newTrigger(
			"live_scores",
			params.Logger,
			params.Loader,
			params.Evaluator,
			params.Queue,
		),
		enabled:  !params.Config.Cron.DisableLiveScores,
		interval: interval,
	}, nil
}

func (t *liveScoresTask) Name() string {
	return "live_scores"
}

func (t *liveScoresTask) Spec() string {
	return fmt.Sprintf("@every %v", t.interval)
}

func (t *liveScoresTask) Parallelism() int64 {
	return 1
}

func (t *liveScoresTask) Enabled() bool {
	return t.enabled
}

func (t *liveScoresTask) DelayStartDuration() time.Duration {
	return time.Minute
}

func (t *liveScoresTask) Run(ctx context.Context) error {
	windowCtx, ok, err := t.gate(ctx, t.evaluator.InMatchWindow)
	if err != nil || !ok {
		return err
	}

	return t.enqueue(ctx, queue.Request{
		Type:    task.TypeLiveScores,
		Subject: task.RoundSubject(windowCtx.Round.ID),
		Source:  task.SourceCron,
		Options: queue.Options{
			TimeBucket: windowCtx.Now.Truncate(t.interval),
		},
	})
}
