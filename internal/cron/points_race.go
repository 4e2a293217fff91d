package cron

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/fpl"
	"github.com/tonglam/letletme-data-sub005/internal/queue"
	"github.com/tonglam/letletme-data-sub005/internal/task"
	"github.com/tonglam/letletme-data-sub005/internal/utils/fxparams"
	"github.com/tonglam/letletme-data-sub005/internal/window"
)

type (
	PointsRaceTaskParams struct {
		fx.In
		fxparams.Params
		Loader      ContextLoader
		Evaluator   *window.Evaluator
		Queue       queue.Queue
		Tournaments fpl.Repository
	}

	pointsRaceTask struct {
		trigger
		enabled     bool
		tournaments fpl.TournamentLister
	}
)

// NewPointsRace refreshes tournament standings after the round settles, one
// task per tracked tournament. The same tasks are also reachable through the
// round-results cascade; dedup keys make the double coverage harmless.
func NewPointsRace(params PointsRaceTaskParams) (Task, error) {
	return &pointsRaceTask{
		trigger: newTrigger(
			"points_race",
			params.Logger,
			params.Loader,
			params.Evaluator,
			params.Queue,
		),
		enabled:     !params.Config.Cron.DisablePointsRace,
		tournaments: params.Tournaments,
	}, nil
}

func (t *pointsRaceTask) Name() string {
	return "points_race"
}

func (t *pointsRaceTask) Spec() string {
	return "@every 1h"
}

func (t *pointsRaceTask) Parallelism() int64 {
	return 1
}

func (t *pointsRaceTask) Enabled() bool {
	return t.enabled
}

func (t *pointsRaceTask) DelayStartDuration() time.Duration {
	return time.Minute
}

func (t *pointsRaceTask) Run(ctx context.Context) error {
	windowCtx, ok, err := t.gate(ctx, t.evaluator.InPostMatchWindow)
	if err != nil || !ok {
		return err
	}

	tournaments, err := t.tournaments.ListTournaments(ctx)
	if err != nil {
		t.logger.Warn("failed to list tournaments, skipping tick", zap.Error(err))
		return nil
	}
	if len(tournaments) == 0 {
		return nil
	}

	reqs := make([]queue.Request, len(tournaments))
	for i, tournament := range tournaments {
		reqs[i] = queue.Request{
			Type:    task.TypePointsRace,
			Subject: task.RoundSubject(windowCtx.Round.ID).WithTournament(tournament.ID),
			Source:  task.SourceCron,
		}
	}

	if _, err := t.queue.EnqueueBatch(ctx, reqs); err != nil {
		return xerrors.Errorf("failed to enqueue points-race tasks: %w", err)
	}
	return nil
}
