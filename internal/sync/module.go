package sync

import (
	"go.uber.org/fx"

	"github.com/tonglam/letletme-data-sub005/internal/executor"
	"github.com/tonglam/letletme-data-sub005/internal/fpl"
	"github.com/tonglam/letletme-data-sub005/internal/task"
	"github.com/tonglam/letletme-data-sub005/internal/utils/fxparams"
)

type (
	HandlerParams struct {
		fx.In
		fxparams.Params
		Client     fpl.Client
		Repository fpl.Repository
	}

	handlerBuilder struct {
		taskType task.Type
		build    func(b baseHandler) executor.Handler
	}
)

// builders is the single source of truth for the handler set. The executor
// asserts at startup that it covers every task type exactly once.
var builders = []handlerBuilder{
	{task.TypeRoundFixtures, func(b baseHandler) executor.Handler { return &roundFixturesHandler{b} }},
	{task.TypeRoundPicks, func(b baseHandler) executor.Handler { return &roundPicksHandler{b} }},
	{task.TypeEntryPicks, func(b baseHandler) executor.Handler { return &entryPicksHandler{b} }},
	{task.TypeLiveScores, func(b baseHandler) executor.Handler { return &liveScoresHandler{b} }},
	{task.TypeLiveSummary, func(b baseHandler) executor.Handler { return &liveSummaryHandler{b} }},
	{task.TypeRoundResults, func(b baseHandler) executor.Handler { return &roundResultsHandler{b} }},
	{task.TypePointsRace, func(b baseHandler) executor.Handler { return &pointsRaceHandler{b} }},
	{task.TypeBattleRace, func(b baseHandler) executor.Handler { return &battleRaceHandler{b} }},
	{task.TypeKnockout, func(b baseHandler) executor.Handler { return &knockoutHandler{b} }},
	{task.TypePostTransfers, func(b baseHandler) executor.Handler { return &postTransfersHandler{b} }},
	{task.TypeCupResults, func(b baseHandler) executor.Handler { return &cupResultsHandler{b} }},
}

var Module = fx.Options(provideHandlers()...)

func provideHandlers() []fx.Option {
	opts := make([]fx.Option, len(builders))
	for i, builder := range builders {
		builder := builder
		opts[i] = fx.Provide(fx.Annotated{
			Group: "handler",
			Target: func(params HandlerParams) executor.Handler {
				return newHandler(builder, params)
			},
		})
	}
	return opts
}

// NewHandlers builds the full handler set without fx, used by tests.
func NewHandlers(params HandlerParams) []executor.Handler {
	handlers := make([]executor.Handler, len(builders))
	for i, builder := range builders {
		handlers[i] = newHandler(builder, params)
	}
	return handlers
}

func newHandler(builder handlerBuilder, params HandlerParams) executor.Handler {
	return builder.build(newBaseHandler(
		builder.taskType,
		params.Logger,
		params.Metrics,
		params.Client,
		params.Repository,
	))
}
