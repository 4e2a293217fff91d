package task

import (
	"time"

	"github.com/tonglam/letletme-data-sub005/internal/fpl"
)

type (
	// Type identifies one kind of synchronization work. The set is closed:
	// every Type must have exactly one registered handler, which is asserted
	// at startup.
	Type string

	// Source records who requested the work.
	Source string

	// Status tracks the lifecycle of a task instance:
	// Waiting -> Active -> {Completed | Waiting (retry after backoff) | Failed}.
	// Delayed is a Waiting task whose DelayUntil has not passed yet.
	Status string

	// Subject is the optional entity the task operates on. Zero-value fields
	// are unset; String produces the canonical form used in dedup keys.
	Subject struct {
		Round      fpl.RoundID      `json:"round,omitempty"`
		Entry      fpl.EntryID      `json:"entry,omitempty"`
		Tournament fpl.TournamentID `json:"tournament,omitempty"`
	}

	// Task is one schedulable, retryable, deduplicated unit of work.
	Task struct {
		Type        Type       `json:"type"`
		Subject     Subject    `json:"subject"`
		Source      Source     `json:"source"`
		DedupKey    string     `json:"dedup_key"`
		Status      Status     `json:"status"`
		Attempt     int        `json:"attempt"`
		MaxAttempts int        `json:"max_attempts"`
		Priority    int        `json:"priority"`
		EnqueuedAt  time.Time  `json:"enqueued_at"`
		DelayUntil  *time.Time `json:"delay_until,omitempty"`
	}

	// Outcome is the reported result of one handler execution.
	Outcome struct {
		Success  bool
		Err      error
		Duration time.Duration
	}
)

const (
	TypeRoundFixtures Type = "round-fixtures"
	TypeRoundPicks    Type = "round-picks"
	TypeEntryPicks    Type = "entry-picks"
	TypeLiveScores    Type = "live-scores"
	TypeLiveSummary   Type = "live-summary"
	TypeRoundResults  Type = "round-results"
	TypePointsRace    Type = "points-race"
	TypeBattleRace    Type = "battle-race"
	TypeKnockout      Type = "knockout"
	TypePostTransfers Type = "post-transfers"
	TypeCupResults    Type = "cup-results"

	SourceCron    Source = "cron"
	SourceManual  Source = "manual"
	SourceAPI     Source = "api"
	SourceCascade Source = "cascade"

	StatusWaiting   Status = "waiting"
	StatusDelayed   Status = "delayed"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allTypes = []Type{
	TypeRoundFixtures,
	TypeRoundPicks,
	TypeEntryPicks,
	TypeLiveScores,
	TypeLiveSummary,
	TypeRoundResults,
	TypePointsRace,
	TypeBattleRace,
	TypeKnockout,
	TypePostTransfers,
	TypeCupResults,
}

// AllTypes returns every declared task type.
func AllTypes() []Type {
	types := make([]Type, len(allTypes))
	copy(types, allTypes)
	return types
}

func (t Type) Valid() bool {
	for _, known := range allTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (s Source) Valid() bool {
	switch s {
	case SourceCron, SourceManual, SourceAPI, SourceCascade:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status ends the task lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Subject) IsZero() bool {
	return s.Round == 0 && s.Entry == 0 && s.Tournament == 0
}

// WithEntry returns a copy of the subject scoped to the given entry,
// keeping the round. Used by per-entry cascade fan-out.
func (s Subject) WithEntry(entryID fpl.EntryID) Subject {
	s.Entry = entryID
	return s
}

// WithTournament returns a copy of the subject scoped to the given
// tournament, keeping the round.
func (s Subject) WithTournament(tournamentID fpl.TournamentID) Subject {
	s.Tournament = tournamentID
	return s
}

func RoundSubject(roundID fpl.RoundID) Subject {
	return Subject{Round: roundID}
}
