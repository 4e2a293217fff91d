package sync

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/fpl"
	"github.com/tonglam/letletme-data-sub005/internal/task"
	"github.com/tonglam/letletme-data-sub005/internal/utils/retry"
)

type (
	roundFixturesHandler struct{ baseHandler }
	roundPicksHandler    struct{ baseHandler }
	entryPicksHandler    struct{ baseHandler }
	liveScoresHandler    struct{ baseHandler }
	liveSummaryHandler   struct{ baseHandler }
	roundResultsHandler  struct{ baseHandler }
	pointsRaceHandler    struct{ baseHandler }
	battleRaceHandler    struct{ baseHandler }
	knockoutHandler      struct{ baseHandler }
	postTransfersHandler struct{ baseHandler }
	cupResultsHandler    struct{ baseHandler }
)

func (h *roundFixturesHandler) Handle(ctx context.Context, t *task.Task) error {
	return h.run(ctx, t, func(ctx context.Context, t *task.Task) error {
		roundID, ok, err := h.resolveRound(ctx, t)
		if err != nil || !ok {
			return err
		}

		fixtures, err := retry.WrapWithResult(ctx, func(ctx context.Context) ([]fpl.Fixture, error) {
			return h.client.GetFixtures(ctx, roundID)
		}, retry.WithLogger(h.logger))
		if err != nil {
			return xerrors.Errorf("failed to fetch fixtures: %w", err)
		}

		if err := h.repository.UpsertFixtures(ctx, roundID, fixtures); err != nil {
			return xerrors.Errorf("failed to upsert fixtures: %w", err)
		}
		return nil
	})
}

// Handle for round-picks only resolves the round; the real work happens in
// the entry-picks tasks fanned out per entry when this one completes.
func (h *roundPicksHandler) Handle(ctx context.Context, t *task.Task) error {
	return h.run(ctx, t, func(ctx context.Context, t *task.Task) error {
		_, _, err := h.resolveRound(ctx, t)
		return err
	})
}

func (h *entryPicksHandler) Handle(ctx context.Context, t *task.Task) error {
	return h.run(ctx, t, func(ctx context.Context, t *task.Task) error {
		if t.Subject.Entry == 0 {
			h.logger.Warn("entry-picks task without an entry, skipping")
			return nil
		}
		roundID, ok, err := h.resolveRound(ctx, t)
		if err != nil || !ok {
			return err
		}

		if err := h.repository.UpsertEntryPicks(ctx, roundID, t.Subject.Entry); err != nil {
			return xerrors.Errorf("failed to upsert entry picks: %w", err)
		}
		return nil
	})
}

func (h *liveScoresHandler) Handle(ctx context.Context, t *task.Task) error {
	return h.run(ctx, t, func(ctx context.Context, t *task.Task) error {
		roundID, ok, err := h.resolveRound(ctx, t)
		if err != nil || !ok {
			return err
		}

		if err := h.repository.UpsertLiveScores(ctx, roundID); err != nil {
			return xerrors.Errorf("failed to upsert live scores: %w", err)
		}
		return nil
	})
}

func (h *liveSummaryHandler) Handle(ctx context.Context, t *task.Task) error {
	return h.run(ctx, t, func(ctx context.Context, t *task.Task) error {
		roundID, ok, err := h.resolveRound(ctx, t)
		if err != nil || !ok {
			return err
		}

		if err := h.repository.UpsertLiveSummary(ctx, roundID); err != nil {
			return xerrors.Errorf("failed to upsert live summary: %w", err)
		}
		return nil
	})
}

func (h *roundResultsHandler) Handle(ctx context.Context, t *task.Task) error {
	return h.run(ctx, t, func(ctx context.Context, t *task.Task) error {
		roundID, ok, err := h.resolveRound(ctx, t)
		if err != nil || !ok {
			return err
		}

		if err := h.repository.UpsertRoundResults(ctx, roundID); err != nil {
			return xerrors.Errorf("failed to upsert round results: %w", err)
		}
		return nil
	})
}

// forEachTournament applies op to the subject's tournament, or to every
// tracked tournament when the subject does not pin one. Cascade-expanded
// tasks carry only the round, cron fan-out pins a tournament; both converge
// here.
func (h baseHandler) forEachTournament(
	ctx context.Context,
	t *task.Task,
	roundID fpl.RoundID,
	op func(ctx context.Context, tournamentID fpl.TournamentID, roundID fpl.RoundID) error,
) error {
	if t.Subject.Tournament != 0 {
		return op(ctx, t.Subject.Tournament, roundID)
	}

	tournaments, err := h.repository.ListTournaments(ctx)
	if err != nil {
		return xerrors.Errorf("failed to list tournaments: %w", err)
	}
	for _, tournament := range tournaments {
		if err := op(ctx, tournament.ID, roundID); err != nil {
			return xerrors.Errorf("failed to update tournament %v: %w", tournament.ID, err)
		}
	}
	return nil
}

func (h *pointsRaceHandler) Handle(ctx context.Context, t *task.Task) error {
	return h.run(ctx, t, func(ctx context.Context, t *task.Task) error {
		roundID, ok, err := h.resolveRound(ctx, t)
		if err != nil || !ok {
			return err
		}
		return h.forEachTournament(ctx, t, roundID, h.repository.UpdatePointsRace)
	})
}

func (h *battleRaceHandler) Handle(ctx context.Context, t *task.Task) error {
	return h.run(ctx, t, func(ctx context.Context, t *task.Task) error {
		roundID, ok, err := h.resolveRound(ctx, t)
		if err != nil || !ok {
			return err
		}
		return h.forEachTournament(ctx, t, roundID, h.repository.UpdateBattleRace)
	})
}

func (h *knockoutHandler) Handle(ctx context.Context, t *task.Task) error {
	return h.run(ctx, t, func(ctx context.Context, t *task.Task) error {
		roundID, ok, err := h.resolveRound(ctx, t)
		if err != nil || !ok {
			return err
		}
		return h.forEachTournament(ctx, t, roundID, h.repository.UpdateKnockout)
	})
}

func (h *postTransfersHandler) Handle(ctx context.Context, t *task.Task) error {
	return h.run(ctx, t, func(ctx context.Context, t *task.Task) error {
		roundID, ok, err := h.resolveRound(ctx, t)
		if err != nil || !ok {
			return err
		}

		if err := h.repository.UpdatePostTransfers(ctx, roundID); err != nil {
			return xerrors.Errorf("failed to update post transfers: %w", err)
		}
		return nil
	})
}

func (h *cupResultsHandler) Handle(ctx context.Context, t *task.Task) error {
	return h.run(ctx, t, func(ctx context.Context, t *task.Task) error {
		roundID, ok, err := h.resolveRound(ctx, t)
		if err != nil || !ok {
			return err
		}

		if err := h.repository.UpdateCupResults(ctx, roundID); err != nil {
			return xerrors.Errorf("failed to update cup results: %w", err)
		}
		return nil
	})
}
