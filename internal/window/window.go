package window

import (
	"time"

	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/config"
	"github.com/tonglam/letletme-data-sub005/internal/fpl"
)

type (
	// Context is the minimal temporal snapshot needed by the scheduling gates.
	// Round is nil when the provider reports no current round.
	Context struct {
		Now      time.Time
		Round    *fpl.Round
		Fixtures []fpl.Fixture
	}

	// Evaluator holds the season and window configuration. All predicates are
	// pure: deterministic given the Context, no I/O, no logging.
	Evaluator struct {
		seasonStart   time.Month
		seasonEnd     time.Month
		matchBuffer   time.Duration
		fallbackStart int // minutes since midnight UTC
		fallbackEnd   int
	}
)

const (
	defaultMatchBuffer   = 2 * time.Hour
	defaultFallbackStart = 6 * 60
	defaultFallbackEnd   = 20 * 60

	clockLayout = "15:04"
)

func NewEvaluator(cfg *config.Config) (*Evaluator, error) {
	e := &Evaluator{
		seasonStart:   cfg.Season.StartMonth,
		seasonEnd:     cfg.Season.EndMonth,
		matchBuffer:   cfg.Windows.MatchBuffer,
		fallbackStart: defaultFallbackStart,
		fallbackEnd:   defaultFallbackEnd,
	}

	if e.matchBuffer <= 0 {
		e.matchBuffer = defaultMatchBuffer
	}

	if cfg.Windows.SelectionFallbackStart != "" {
		minutes, err := parseClock(cfg.Windows.SelectionFallbackStart)
		if err != nil {
			return nil, xerrors.Errorf("failed to parse selection_fallback_start: %w", err)
		}
		e.fallbackStart = minutes
	}

	if cfg.Windows.SelectionFallbackEnd != "" {
		minutes, err := parseClock(cfg.Windows.SelectionFallbackEnd)
		if err != nil {
			return nil, xerrors.Errorf("failed to parse selection_fallback_end: %w", err)
		}
		e.fallbackEnd = minutes
	}

	if e.fallbackStart >= e.fallbackEnd {
		return nil, xerrors.Errorf("invalid selection fallback range: %v >= %v", e.fallbackStart, e.fallbackEnd)
	}

	return e, nil
}

// InSeasonWindow reports whether now falls in the calendar-month range of the
// active season. The range may wrap the year boundary (e.g. August to May).
func (e *Evaluator) InSeasonWindow(now time.Time) bool {
	month := now.UTC().Month()
	if e.seasonStart <= e.seasonEnd {
		return month >= e.seasonStart && month <= e.seasonEnd
	}
	return month >= e.seasonStart || month <= e.seasonEnd
}

// InSelectionWindow reports whether picks for the round can still change:
// from season start until the earliest fixture kickoff of the round.
// With no fixtures published yet, it falls back to a fixed daily clock range
// instead of being unconditionally true or false.
func (e *Evaluator) InSelectionWindow(ctx Context) bool {
	if ctx.Round == nil {
		return false
	}
	if !e.InSeasonWindow(ctx.Now) {
		return false
	}

	if len(ctx.Fixtures) == 0 {
		minutes := minutesOfDay(ctx.Now)
		return minutes >= e.fallbackStart && minutes < e.fallbackEnd
	}

	return ctx.Now.Before(earliestKickoff(ctx.Fixtures))
}

// InMatchWindow reports whether matches of the round are being played:
// between the first kickoff and a buffer after the estimated end of the last
// fixture. It turns false once every fixture is finished.
func (e *Evaluator) InMatchWindow(ctx Context) bool {
	if ctx.Round == nil || len(ctx.Fixtures) == 0 {
		return false
	}
	if e.InPostMatchWindow(ctx) {
		return false
	}

	if ctx.Now.Before(earliestKickoff(ctx.Fixtures)) {
		return false
	}

	return !ctx.Now.After(latestEnd(ctx.Fixtures).Add(e.matchBuffer))
}

// InPostMatchWindow reports whether every fixture of the round is finished,
// which gates the settlement tasks (results and derived standings).
func (e *Evaluator) InPostMatchWindow(ctx Context) bool {
	if ctx.Round == nil || len(ctx.Fixtures) == 0 {
		return false
	}

	for _, fixture := range ctx.Fixtures {
		if !fixture.Finished {
			return false
		}
	}
	return true
}

func earliestKickoff(fixtures []fpl.Fixture) time.Time {
	earliest := fixtures[0].Kickoff
	for _, fixture := range fixtures[1:] {
		if fixture.Kickoff.Before(earliest) {
			earliest = fixture.Kickoff
		}
	}
	return earliest
}

func latestEnd(fixtures []fpl.Fixture) time.Time {
	latest := fixtures[0].EstimatedEnd()
	for _, fixture := range fixtures[1:] {
		if end := fixture.EstimatedEnd(); end.After(latest) {
			latest = end
		}
	}
	return latest
}

func minutesOfDay(now time.Time) int {
	utc := now.UTC()
	return utc.Hour()*60 + utc.Minute()
}

func parseClock(value string) (int, error) {
	parsed, err := time.Parse(clockLayout, value)
	if err != nil {
		return 0, xerrors.Errorf("failed to parse clock value %v: %w", value, err)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
