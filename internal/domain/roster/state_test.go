package roster

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/riskibarqy/fantasy-roster/internal/domain/formation"
	"github.com/riskibarqy/fantasy-roster/internal/domain/player"
)

func newState(t *testing.T, code string) State {
	t.Helper()
	s, err := New(formation.DefaultPolicy(), 1000, code)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	return s
}

func mkPlayer(id string, pos player.Position, price int64) player.Player {
	return player.Player{ID: id, Name: "Player " + id, Position: pos, Price: price, Team: "t"}
}

// squad433 returns a complete 4-3-3 squad priced 50 each.
func squad433() []player.Player {
	out := []player.Player{mkPlayer("gk1", player.PositionGoalkeeper, 50)}
	for i := 1; i <= 4; i++ {
		out = append(out, mkPlayer(fmt.Sprintf("def%d", i), player.PositionDefender, 50))
	}
	for i := 1; i <= 3; i++ {
		out = append(out, mkPlayer(fmt.Sprintf("mid%d", i), player.PositionMidfielder, 50))
	}
	for i := 1; i <= 3; i++ {
		out = append(out, mkPlayer(fmt.Sprintf("fwd%d", i), player.PositionForward, 50))
	}
	return out
}

func fill(t *testing.T, s State, players []player.Player) State {
	t.Helper()
	for _, p := range players {
		next, err := s.Add(p)
		if err != nil {
			t.Fatalf("add %s: %v", p.ID, err)
		}
		s = next
	}
	return s
}

func assertReason(t *testing.T, err error, reason Reason) {
	t.Helper()
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError %s, got %v", reason, err)
	}
	if vErr.Reason != reason {
		t.Fatalf("expected reason %s, got %s", reason, vErr.Reason)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected error to match ErrValidation")
	}
}

func TestAdd_GoalkeeperDeductsBudget(t *testing.T) {
	s := newState(t, "4-3-3")

	next, err := s.Add(mkPlayer("gk1", player.PositionGoalkeeper, 50))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if next.BudgetRemaining() != 950 {
		t.Fatalf("expected budget 950, got %d", next.BudgetRemaining())
	}
	if s.Size() != 0 || s.BudgetRemaining() != 1000 {
		t.Fatalf("receiver state must not change")
	}
}

func TestAdd_RosterFull(t *testing.T) {
	s := fill(t, newState(t, "4-3-3"), squad433())

	_, err := s.Add(mkPlayer("extra", player.PositionForward, 1))
	assertReason(t, err, ReasonRosterFull)
	if !errors.Is(err, ErrRosterFull) {
		t.Fatalf("expected ErrRosterFull")
	}
	if s.Size() != formation.SquadSize {
		t.Fatalf("entries changed: %d", s.Size())
	}
}

func TestAdd_PositionQuotaExceeded(t *testing.T) {
	s := newState(t, "4-3-3")
	for i := 1; i <= 4; i++ {
		s = fill(t, s, []player.Player{mkPlayer(fmt.Sprintf("def%d", i), player.PositionDefender, 10)})
	}

	_, err := s.Add(mkPlayer("def5", player.PositionDefender, 10))
	assertReason(t, err, ReasonPositionQuotaExceeded)

	var vErr *ValidationError
	errors.As(err, &vErr)
	if vErr.Position != player.PositionDefender || vErr.Expected != 4 || vErr.Actual != 4 {
		t.Fatalf("unexpected violation detail: %+v", vErr)
	}
}

func TestCanAdd_CheckOrder(t *testing.T) {
	full := fill(t, newState(t, "4-3-3"), squad433())

	// Duplicate wins over every other failure.
	assertReason(t, full.CanAdd(mkPlayer("gk1", player.PositionGoalkeeper, 5000)), ReasonDuplicatePlayer)
	// Full wins over budget and quota.
	assertReason(t, full.CanAdd(mkPlayer("gk2", player.PositionGoalkeeper, 5000)), ReasonRosterFull)

	s := fill(t, newState(t, "4-3-3"), []player.Player{mkPlayer("gk1", player.PositionGoalkeeper, 10)})
	// Budget wins over quota.
	assertReason(t, s.CanAdd(mkPlayer("gk2", player.PositionGoalkeeper, 2000)), ReasonBudgetExceeded)
	assertReason(t, s.CanAdd(mkPlayer("gk2", player.PositionGoalkeeper, 10)), ReasonPositionQuotaExceeded)

	if err := s.CanAdd(mkPlayer("def1", player.PositionDefender, 990)); err != nil {
		t.Fatalf("expected exact remaining budget to be admitted, got %v", err)
	}
}

func TestSetCaptain(t *testing.T) {
	s := fill(t, newState(t, "4-3-3"), squad433()[:2])

	_, err := s.SetCaptain("nobody")
	assertReason(t, err, ReasonCaptainNotInRoster)
	if _, ok := s.CaptainID(); ok {
		t.Fatalf("captain must stay unset")
	}

	s, err = s.SetCaptain("gk1")
	if err != nil {
		t.Fatalf("set captain: %v", err)
	}
	s, err = s.SetCaptain("def1")
	if err != nil {
		t.Fatalf("replace captain: %v", err)
	}

	captains := 0
	for _, e := range s.Entries() {
		if e.IsCaptain {
			captains++
			if e.Player.ID != "def1" {
				t.Fatalf("unexpected captain entry %s", e.Player.ID)
			}
		}
	}
	if captains != 1 {
		t.Fatalf("expected exactly one captain, got %d", captains)
	}
}

func TestRemove(t *testing.T) {
	s := newState(t, "4-3-3")
	_, err := s.Remove("missing")
	assertReason(t, err, ReasonPlayerNotInRoster)

	s = fill(t, s, squad433())
	s, _ = s.SetCaptain("mid2")
	before := s.BudgetRemaining()

	next, err := s.Remove("mid2")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := next.CaptainID(); ok {
		t.Fatalf("captain must be cleared when removed")
	}
	if next.BudgetRemaining() != before+50 {
		t.Fatalf("expected budget restored by 50, got %d -> %d", before, next.BudgetRemaining())
	}
}

func TestComposition_RemovingCaptainDropsToBuilding(t *testing.T) {
	s := fill(t, newState(t, "4-3-3"), squad433())
	if s.Composition() != CompositionBuilding {
		t.Fatalf("11 players without captain must be building, got %s", s.Composition())
	}

	s, _ = s.SetCaptain("fwd1")
	if s.Composition() != CompositionComplete {
		t.Fatalf("expected complete, got %s", s.Composition())
	}

	s, _ = s.Remove("fwd1")
	if s.Composition() != CompositionBuilding {
		t.Fatalf("expected building after removing captain, got %s", s.Composition())
	}
	if s.Size() != 10 {
		t.Fatalf("expected size 10, got %d", s.Size())
	}

	empty := newState(t, "4-3-3")
	if empty.Composition() != CompositionEmpty {
		t.Fatalf("expected empty, got %s", empty.Composition())
	}
}

func TestChangeFormation_NonDestructive(t *testing.T) {
	s := fill(t, newState(t, "4-3-3"), squad433())
	s, _ = s.SetCaptain("def1")
	s = s.MarkSaved()

	next, err := s.ChangeFormation("3-4-3")
	if err != nil {
		t.Fatalf("change formation: %v", err)
	}
	if next.Size() != s.Size() {
		t.Fatalf("entries changed")
	}
	if captain, _ := next.CaptainID(); captain != "def1" {
		t.Fatalf("captain changed to %q", captain)
	}
	if next.Composition() != CompositionBuilding {
		t.Fatalf("expected building after formation mismatch, got %s", next.Composition())
	}
	if next.Saved() {
		t.Fatalf("formation change must clear saved marker")
	}

	_, err = s.ChangeFormation("9-0-1")
	if !errors.Is(err, formation.ErrInvalidFormationCode) {
		t.Fatalf("expected ErrInvalidFormationCode, got %v", err)
	}
}

func TestValidateForSave_ReportsEveryViolation(t *testing.T) {
	s := fill(t, newState(t, "4-3-3"), squad433()[:10])
	s, _ = s.ChangeFormation("5-3-2")

	err := s.ValidateForSave()
	if err == nil {
		t.Fatalf("expected save error")
	}
	if !errors.Is(err, ErrIncompleteRoster) || !errors.Is(err, ErrCaptainMissing) || !errors.Is(err, ErrQuotaMismatch) {
		t.Fatalf("missing expected violations: %v", err)
	}

	mismatches := map[player.Position][2]int64{}
	for _, v := range Violations(err) {
		if v.Reason == ReasonQuotaMismatch {
			mismatches[v.Position] = [2]int64{v.Expected, v.Actual}
		}
	}
	// 10 players: gk1, def1-4, mid1-3, fwd1-2 against 5-3-2.
	if got := mismatches[player.PositionDefender]; got != [2]int64{5, 4} {
		t.Fatalf("unexpected DEF mismatch: %v", got)
	}
	if _, ok := mismatches[player.PositionForward]; ok {
		t.Fatalf("FWD is at quota and must not be reported")
	}
	if _, ok := mismatches[player.PositionMidfielder]; ok {
		t.Fatalf("MID is at quota and must not be reported")
	}
}

func TestValidateForSave_OK(t *testing.T) {
	s := fill(t, newState(t, "4-3-3"), squad433())
	s, _ = s.SetCaptain("gk1")
	if err := s.ValidateForSave(); err != nil {
		t.Fatalf("expected save-eligible roster, got %v", err)
	}
}

func TestMutationClearsSaved(t *testing.T) {
	s := fill(t, newState(t, "4-3-3"), squad433())
	s, _ = s.SetCaptain("gk1")
	s = s.MarkSaved()
	if !s.Saved() {
		t.Fatalf("expected saved")
	}
	s, _ = s.SetCaptain("def1")
	if s.Saved() {
		t.Fatalf("mutation must clear saved marker")
	}
}

func TestApply_AllOrNothing(t *testing.T) {
	s := newState(t, "4-3-3")
	gk := mkPlayer("gk1", player.PositionGoalkeeper, 50)

	next, err := Apply(s,
		AddPlayer{Player: gk},
		SetCaptain{PlayerID: "gk1"},
		ChangeFormation{Code: "4-4-2"},
	)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.Formation().Code() != "4-4-2" || next.Size() != 1 {
		t.Fatalf("unexpected state after batch")
	}

	same, err := Apply(next,
		RemovePlayer{PlayerID: "gk1"},
		AddPlayer{Player: gk},
		AddPlayer{Player: gk},
	)
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Index != 2 {
		t.Fatalf("expected failure at index 2, got %v", err)
	}
	assertReason(t, err, ReasonDuplicatePlayer)
	if captain, _ := same.CaptainID(); captain != "gk1" {
		t.Fatalf("failed batch must return original state")
	}
}

// TestRandomOperations_PreserveInvariants drives random mutation sequences and
// checks the ledger, admission bounds and captain membership after each step.
func TestRandomOperations_PreserveInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	codes := formation.DefaultCodes

	pool := make([]player.Player, 0, 40)
	for i := 0; i < 40; i++ {
		pos := player.OrderedPositions[i%len(player.OrderedPositions)]
		pool = append(pool, mkPlayer(fmt.Sprintf("p%d", i), pos, int64(rng.Intn(200))))
	}

	for run := 0; run < 50; run++ {
		s := newState(t, codes[rng.Intn(len(codes))])
		for step := 0; step < 200; step++ {
			var op Operation
			switch rng.Intn(4) {
			case 0, 1:
				op = AddPlayer{Player: pool[rng.Intn(len(pool))]}
			case 2:
				op = RemovePlayer{PlayerID: pool[rng.Intn(len(pool))].ID}
			default:
				op = SetCaptain{PlayerID: pool[rng.Intn(len(pool))].ID}
			}
			isFormationChange := rng.Intn(10) == 0
			if isFormationChange {
				op = ChangeFormation{Code: codes[rng.Intn(len(codes))]}
			}

			before := s
			next, err := op.Apply(s)
			if err != nil {
				if next.Size() != before.Size() || next.BudgetRemaining() != before.BudgetRemaining() {
					t.Fatalf("failed %s mutated state", op.Name())
				}
				continue
			}
			if isFormationChange {
				if next.Size() != before.Size() {
					t.Fatalf("formation change altered entries")
				}
				bc, _ := before.CaptainID()
				nc, _ := next.CaptainID()
				if bc != nc {
					t.Fatalf("formation change altered captain")
				}
			}
			if add, ok := op.(AddPlayer); ok {
				counts := next.Counts()
				if counts[add.Player.Position] > next.Formation().QuotaFor(add.Player.Position) {
					t.Fatalf("add exceeded quota")
				}
			}
			s = next

			if s.BudgetRemaining()+s.Spent() != s.InitialBudget() {
				t.Fatalf("ledger drift")
			}
			if s.BudgetRemaining() < 0 {
				t.Fatalf("negative budget")
			}
			if s.Size() > formation.SquadSize {
				t.Fatalf("oversized roster")
			}
			captain, hasCaptain := s.CaptainID()
			if hasCaptain && !s.Contains(captain) {
				t.Fatalf("dangling captain %s", captain)
			}
			flagged := 0
			for _, e := range s.Entries() {
				if e.IsCaptain {
					flagged++
				}
			}
			if flagged > 1 || (flagged == 1) != hasCaptain {
				t.Fatalf("captain flags inconsistent")
			}

			okSave := s.ValidateForSave() == nil
			counts := s.Counts()
			expected := s.Size() == formation.SquadSize && s.Formation().Matches(counts) && hasCaptain
			if okSave != expected {
				t.Fatalf("save gate disagrees: got=%v want=%v", okSave, expected)
			}
		}
	}
}
