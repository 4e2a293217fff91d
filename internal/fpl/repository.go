package fpl

import (
	"context"

	"go.uber.org/zap"
)

type (
	// Repository is the persistence contract consumed by the sync handlers.
	// The actual implementation (relational store plus cache invalidation)
	// lives in the data service; handlers only orchestrate calls to it.
	// All operations must be idempotent since retries can re-invoke them.
	Repository interface {
		EntryLister
		TournamentLister

		UpsertFixtures(ctx context.Context, roundID RoundID, fixtures []Fixture) error
		UpsertEntryPicks(ctx context.Context, roundID RoundID, entryID EntryID) error
		UpsertLiveScores(ctx context.Context, roundID RoundID) error
		UpsertLiveSummary(ctx context.Context, roundID RoundID) error
		UpsertRoundResults(ctx context.Context, roundID RoundID) error
		UpdatePointsRace(ctx context.Context, tournamentID TournamentID, roundID RoundID) error
		UpdateBattleRace(ctx context.Context, tournamentID TournamentID, roundID RoundID) error
		UpdateKnockout(ctx context.Context, tournamentID TournamentID, roundID RoundID) error
		UpdatePostTransfers(ctx context.Context, roundID RoundID) error
		UpdateCupResults(ctx context.Context, roundID RoundID) error
	}

	// EntryLister resolves the entries participating in picks sync.
	EntryLister interface {
		ListEntries(ctx context.Context) ([]Entry, error)
	}

	// TournamentLister resolves the tournaments tracked for standings.
	TournamentLister interface {
		ListTournaments(ctx context.Context) ([]Tournament, error)
	}

	nopRepository struct {
		logger *zap.Logger
	}
)

var _ Repository = (*nopRepository)(nil)

// NewNopRepository returns a Repository that logs and discards every write.
// Used in the local environment where the data service is not wired up.
func NewNopRepository(logger *zap.Logger) Repository {
	return &nopRepository{
		logger: logger,
	}
}

func (r *nopRepository) ListEntries(_ context.Context) ([]Entry, error) {
	return nil, nil
}

func (r *nopRepository) ListTournaments(_ context.Context) ([]Tournament, error) {
	return nil, nil
}

func (r *nopRepository) UpsertFixtures(_ context.Context, roundID RoundID, fixtures []Fixture) error {
	r.logger.Info("nop repository: upsert fixtures", zap.Int("round_id", int(roundID)), zap.Int("num_fixtures", len(fixtures)))
	return nil
}

func (r *nopRepository) UpsertEntryPicks(_ context.Context, roundID RoundID, entryID EntryID) error {
	r.logger.Info("nop repository: upsert entry picks", zap.Int("round_id", int(roundID)), zap.Int("entry_id", int(entryID)))
	return nil
}

func (r *nopRepository) UpsertLiveScores(_ context.Context, roundID RoundID) error {
	r.logger.Info("nop repository: upsert live scores", zap.Int("round_id", int(roundID)))
	return nil
}

func (r *nopRepository) UpsertLiveSummary(_ context.Context, roundID RoundID) error {
	r.logger.Info("nop repository: upsert live summary", zap.Int("round_id", int(roundID)))
	return nil
}

func (r *nopRepository) UpsertRoundResults(_ context.Context, roundID RoundID) error {
	r.logger.Info("nop repository: upsert round results", zap.Int("round_id", int(roundID)))
	return nil
}

func (r *nopRepository) UpdatePointsRace(_ context.Context, tournamentID TournamentID, roundID RoundID) error {
	r.logger.Info("nop repository: update points race", zap.Int("tournament_id", int(tournamentID)), zap.Int("round_id", int(roundID)))
	return nil
}

func (r *nopRepository) UpdateBattleRace(_ context.Context, tournamentID TournamentID, roundID RoundID) error {
	r.logger.Info("nop repository: update battle race", zap.Int("tournament_id", int(tournamentID)), zap.Int("round_id", int(roundID)))
	return nil
}

func (r *nopRepository) UpdateKnockout(_ context.Context, tournamentID TournamentID, roundID RoundID) error {
	r.logger.Info("nop repository: update knockout", zap.Int("tournament_id", int(tournamentID)), zap.Int("round_id", int(roundID)))
	return nil
}

func (r *nopRepository) UpdatePostTransfers(_ context.Context, roundID RoundID) error {
	r.logger.Info("nop repository: update post transfers", zap.Int("round_id", int(roundID)))
	return nil
}

func (r *nopRepository) UpdateCupResults(_ context.Context, roundID RoundID) error {
	r.logger.Info("nop repository: update cup results", zap.Int("round_id", int(roundID)))
	return nil
}
