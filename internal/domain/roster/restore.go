package roster

import (
	"github.com/riskibarqy/fantasy-roster/internal/domain/formation"
	"github.com/riskibarqy/fantasy-roster/internal/domain/player"
)

// RestoreOptions seeds a State from a persisted snapshot.
type RestoreOptions struct {
	Policy         formation.Policy
	InitialBudget  int64
	DefaultCode    string
	Snapshot       Snapshot
	CatalogPlayers map[string]player.Player
}

// SkippedRow is a persisted row that could not be restored.
type SkippedRow struct {
	PlayerID string
	Err      error
}

// RestoreReport describes how faithfully a snapshot was restored.
type RestoreReport struct {
	Skipped []SkippedRow
	// BudgetDrift is the stored budget minus the derived one. Non-zero when
	// catalog prices changed since the last commit.
	BudgetDrift       int64
	FormationInferred bool
}

// Restore rebuilds a roster from the last committed snapshot. Rows are
// re-admitted through Add, so restored state always satisfies the roster
// invariants; rows that cannot be admitted are reported instead of kept.
func Restore(opts RestoreOptions) (State, RestoreReport, error) {
	var report RestoreReport
	snap := opts.Snapshot

	code := opts.DefaultCode
	if snap.Exists {
		switch {
		case snap.Profile.Formation != "":
			if _, err := opts.Policy.Parse(snap.Profile.Formation); err == nil {
				code = snap.Profile.Formation
			} else {
				code = inferCode(opts, &report)
			}
		default:
			code = inferCode(opts, &report)
		}
	}

	state, err := New(opts.Policy, opts.InitialBudget, code)
	if err != nil {
		return State{}, report, err
	}
	if !snap.Exists {
		return state, report, nil
	}

	flaggedCaptain := ""
	for _, row := range snap.Rows {
		p, ok := opts.CatalogPlayers[row.PlayerID]
		if !ok {
			report.Skipped = append(report.Skipped, SkippedRow{PlayerID: row.PlayerID, Err: player.ErrPlayerNotFound})
			continue
		}
		next, addErr := state.Add(p)
		if addErr != nil {
			report.Skipped = append(report.Skipped, SkippedRow{PlayerID: row.PlayerID, Err: addErr})
			continue
		}
		state = next
		if row.IsCaptain && flaggedCaptain == "" {
			flaggedCaptain = row.PlayerID
		}
	}

	captain := snap.Profile.CaptainID
	if captain == "" || !state.Contains(captain) {
		captain = flaggedCaptain
	}
	if captain != "" && state.Contains(captain) {
		state, _ = state.SetCaptain(captain)
	}

	report.BudgetDrift = snap.Profile.Budget - state.BudgetRemaining()
	if len(report.Skipped) == 0 {
		state = state.MarkSaved()
	}
	return state, report, nil
}

func inferCode(opts RestoreOptions, report *RestoreReport) string {
	counts := make(map[player.Position]int, len(player.OrderedPositions))
	for _, row := range opts.Snapshot.Rows {
		if p, ok := opts.CatalogPlayers[row.PlayerID]; ok {
			counts[p.Position]++
		}
	}
	if len(opts.Snapshot.Rows) == 0 {
		return opts.DefaultCode
	}

	report.FormationInferred = true
	if f, ok := opts.Policy.Infer(counts); ok {
		return f.Code()
	}
	return opts.Policy.Closest(counts).Code()
}
