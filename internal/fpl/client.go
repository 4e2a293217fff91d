package fpl

import (
	"context"

	"golang.org/x/xerrors"
)

type (
	// Client is the read API of the upstream sports-statistics provider.
	// Implementations must be safe for concurrent use.
	Client interface {
		GetCurrentRound(ctx context.Context) (*Round, error)
		GetFixtures(ctx context.Context, roundID RoundID) ([]Fixture, error)
	}
)

var (
	// ErrNotFound is returned when the provider has no current round,
	// e.g. between seasons.
	ErrNotFound = xerrors.New("not found")
)
