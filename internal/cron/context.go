package cron

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/fpl"
	"github.com/tonglam/letletme-data-sub005/internal/utils/timesource"
	"github.com/tonglam/letletme-data-sub005/internal/window"
)

type (
	// ContextLoader assembles the temporal snapshot the window predicates
	// evaluate against: the current round and its fixtures as seen by the
	// provider right now.
	ContextLoader interface {
		Load(ctx context.Context) (window.Context, error)
	}

	contextLoader struct {
		client     fpl.Client
		timeSource timesource.TimeSource
	}
)

func NewContextLoader(client fpl.Client, ts timesource.TimeSource) ContextLoader {
	return &contextLoader{
		client:     client,
		timeSource: ts,
	}
}

func (l *contextLoader) Load(ctx context.Context) (window.Context, error) {
	now := l.timeSource.Now()

	round, err := l.client.GetCurrentRound(ctx)
	if err != nil {
		if xerrors.Is(err, fpl.ErrNotFound) {
			// Between seasons. A nil round makes every round-scoped
			// predicate false.
			return window.Context{Now: now}, nil
		}
		return window.Context{}, xerrors.Errorf("failed to load current round: %w", err)
	}

	fixtures, err := l.client.GetFixtures(ctx, round.ID)
	if err != nil {
		return window.Context{}, xerrors.Errorf("failed to load fixtures of round %v: %w", round.ID, err)
	}

	return window.Context{
		Now:      now,
		Round:    round,
		Fixtures: fixtures,
	}, nil
}
