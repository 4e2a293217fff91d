package cron

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewContextLoader),
	fx.Provide(fx.Annotated{
		Group:  "task",
		Target: NewFixturesSync,
	}),
	fx.Provide(fx.Annotated{
		Group:  "task",
		Target: NewPicksSync,
	}),
	fx.Provide(fx.Annotated{
		Group:  "task",
		Target: NewLiveScores,
	}),
	fx.Provide(fx.Annotated{
		Group:  "task",
		Target: NewRoundResults,
	}),
	fx.Provide(fx.Annotated{
		Group:  "task",
		Target: NewPointsRace,
	}),
)
