package cascade

import (
	"golang.org/x/xerrors"

	"github.com/tonglam/letletme-data-sub005/internal/task"
)

type (
	// Def declares the dependents expanded when a root task completes.
	// Dependents inherit the root's subject; PerEntry dependents are fanned
	// out once per entry resolved at expansion time.
	Def struct {
		Dependents []task.Type
		PerEntry   []task.Type
	}
)

// defs is the cascade adjacency map. Completing a root enqueues its
// dependents; every other type is terminal and must be listed in
// terminalTypes so that Validate catches a forgotten declaration when a new
// task type is added.
var defs = map[task.Type]Def{
	task.TypeLiveScores: {
		Dependents: []task.Type{task.TypeLiveSummary},
	},
	task.TypeRoundResults: {
		Dependents: []task.Type{
			task.TypePointsRace,
			task.TypeBattleRace,
			task.TypeKnockout,
			task.TypePostTransfers,
			task.TypeCupResults,
		},
	},
	task.TypeRoundPicks: {
		PerEntry: []task.Type{task.TypeEntryPicks},
	},
}

var terminalTypes = map[task.Type]bool{
	task.TypeRoundFixtures: true,
}

// Defs returns a copy of the adjacency map for inspection.
func Defs() map[task.Type]Def {
	out := make(map[task.Type]Def, len(defs))
	for root, def := range defs {
		out[root] = Def{
			Dependents: append([]task.Type(nil), def.Dependents...),
			PerEntry:   append([]task.Type(nil), def.PerEntry...),
		}
	}
	return out
}

// Validate asserts that every declared task type is a cascade root, a
// dependent of some root, or explicitly terminal.
func Validate() error {
	covered := make(map[task.Type]bool)
	for root, def := range defs {
		covered[root] = true
		for _, dependent := range def.Dependents {
			if covered[dependent] && !isRoot(dependent) {
				return xerrors.Errorf("task type declared as dependent twice: %v", dependent)
			}
			covered[dependent] = true
		}
		for _, dependent := range def.PerEntry {
			if covered[dependent] && !isRoot(dependent) {
				return xerrors.Errorf("task type declared as dependent twice: %v", dependent)
			}
			covered[dependent] = true
		}
	}
	for t := range terminalTypes {
		covered[t] = true
	}

	for _, t := range task.AllTypes() {
		if !covered[t] {
			return xerrors.Errorf("task type not covered by cascade defs: %v", t)
		}
	}
	return nil
}

func isRoot(t task.Type) bool {
	_, ok := defs[t]
	return ok
}
