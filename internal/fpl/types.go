package fpl

import (
	"time"
)

type (
	RoundID      int
	EntryID      int
	TournamentID int

	// Round is one gameweek of the competition.
	Round struct {
		ID        RoundID
		Deadline  time.Time
		IsCurrent bool
		Finished  bool
	}

	// Fixture is a single match of a round. Kickoff is the scheduled start
	// time; Finished is set by the provider once the result is final.
	Fixture struct {
		ID       int
		RoundID  RoundID
		Kickoff  time.Time
		Started  bool
		Finished bool
		Minutes  int
	}

	Tournament struct {
		ID   TournamentID
		Name string
	}

	Entry struct {
		ID   EntryID
		Name string
	}
)

// EstimatedEnd returns the estimated wall-clock end of the fixture.
func (f Fixture) EstimatedEnd() time.Time {
	return f.Kickoff.Add(fixtureDuration)
}

// fixtureDuration is the nominal length of a match including half time.
const fixtureDuration = 105 * time.Minute
