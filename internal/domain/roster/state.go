package roster

import (
	"fmt"

	"github.com/riskibarqy/fantasy-roster/internal/domain/formation"
	"github.com/riskibarqy/fantasy-roster/internal/domain/player"
)

// Composition is the roster's progress toward a save-eligible squad.
type Composition string

const (
	CompositionEmpty    Composition = "empty"
	CompositionBuilding Composition = "building"
	CompositionComplete Composition = "complete"
)

// Entry is a roster member as reported to callers.
type Entry struct {
	Player    player.Player
	IsCaptain bool
}

// State is an immutable roster value. Every operation returns a new State and
// leaves its receiver untouched, so a State captured for commit cannot change
// underneath the gateway.
type State struct {
	policy        formation.Policy
	formation     formation.Formation
	initialBudget int64
	entries       map[string]player.Player
	order         []string
	captainID     string
	saved         bool
}

// New creates an empty roster with the given budget and formation code.
func New(policy formation.Policy, initialBudget int64, formationCode string) (State, error) {
	if initialBudget < 0 {
		return State{}, fmt.Errorf("initial budget must be >= 0")
	}
	f, err := policy.Parse(formationCode)
	if err != nil {
		return State{}, err
	}

	return State{
		policy:        policy,
		formation:     f,
		initialBudget: initialBudget,
		entries:       make(map[string]player.Player),
	}, nil
}

func (s State) clone() State {
	out := s
	out.entries = make(map[string]player.Player, len(s.entries))
	for id, p := range s.entries {
		out.entries[id] = p
	}
	out.order = make([]string, len(s.order))
	copy(out.order, s.order)
	return out
}

func (s State) Policy() formation.Policy {
	return s.policy
}

func (s State) Formation() formation.Formation {
	return s.formation
}

func (s State) InitialBudget() int64 {
	return s.initialBudget
}

// Spent is the sum of the prices of every roster member.
func (s State) Spent() int64 {
	var total int64
	for _, p := range s.entries {
		total += p.Price
	}
	return total
}

// BudgetRemaining is derived from the initial budget and current entries.
func (s State) BudgetRemaining() int64 {
	return s.initialBudget - s.Spent()
}

func (s State) Size() int {
	return len(s.entries)
}

func (s State) Contains(playerID string) bool {
	_, ok := s.entries[playerID]
	return ok
}

func (s State) CaptainID() (string, bool) {
	return s.captainID, s.captainID != ""
}

func (s State) Saved() bool {
	return s.saved
}

// MarkSaved returns a copy flagged as matching the persisted roster.
func (s State) MarkSaved() State {
	out := s.clone()
	out.saved = true
	return out
}

// Entries returns roster members in insertion order.
func (s State) Entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Entry{
			Player:    s.entries[id],
			IsCaptain: id == s.captainID,
		})
	}
	return out
}

// Counts returns the number of roster members per position.
func (s State) Counts() map[player.Position]int {
	out := make(map[player.Position]int, len(player.OrderedPositions))
	for _, pos := range player.OrderedPositions {
		out[pos] = 0
	}
	for _, p := range s.entries {
		out[p.Position]++
	}
	return out
}

// CanAdd reports why p cannot join the roster, or nil if it can. Rules are
// checked in a fixed order and the first failure wins.
func (s State) CanAdd(p player.Player) error {
	if s.Contains(p.ID) {
		return &ValidationError{Reason: ReasonDuplicatePlayer, PlayerID: p.ID}
	}
	if len(s.entries) >= formation.SquadSize {
		return &ValidationError{
			Reason:   ReasonRosterFull,
			PlayerID: p.ID,
			Expected: formation.SquadSize,
			Actual:   int64(len(s.entries)),
		}
	}
	if remaining := s.BudgetRemaining(); p.Price > remaining {
		return &ValidationError{
			Reason:   ReasonBudgetExceeded,
			PlayerID: p.ID,
			Position: p.Position,
			Expected: remaining,
			Actual:   p.Price,
		}
	}
	quota := s.formation.QuotaFor(p.Position)
	if count := s.Counts()[p.Position]; count >= quota {
		return &ValidationError{
			Reason:   ReasonPositionQuotaExceeded,
			PlayerID: p.ID,
			Position: p.Position,
			Expected: int64(quota),
			Actual:   int64(count),
		}
	}
	return nil
}

func (s State) Add(p player.Player) (State, error) {
	if err := p.Validate(); err != nil {
		return s, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.CanAdd(p); err != nil {
		return s, err
	}

	out := s.clone()
	out.entries[p.ID] = p
	out.order = append(out.order, p.ID)
	out.saved = false
	return out, nil
}

// Remove drops a member, restoring its price to the ledger and clearing the
// captain when the captain is removed.
func (s State) Remove(playerID string) (State, error) {
	if !s.Contains(playerID) {
		return s, &ValidationError{Reason: ReasonPlayerNotInRoster, PlayerID: playerID}
	}

	out := s.clone()
	delete(out.entries, playerID)
	for i, id := range out.order {
		if id == playerID {
			out.order = append(out.order[:i], out.order[i+1:]...)
			break
		}
	}
	if out.captainID == playerID {
		out.captainID = ""
	}
	out.saved = false
	return out, nil
}

func (s State) SetCaptain(playerID string) (State, error) {
	if !s.Contains(playerID) {
		return s, &ValidationError{Reason: ReasonCaptainNotInRoster, PlayerID: playerID}
	}

	out := s.clone()
	out.captainID = playerID
	out.saved = false
	return out, nil
}

// ChangeFormation swaps the active quotas. Members are never evicted, so the
// roster may end up over quota until the user fixes it.
func (s State) ChangeFormation(code string) (State, error) {
	f, err := s.policy.Parse(code)
	if err != nil {
		return s, err
	}

	out := s.clone()
	out.formation = f
	out.saved = false
	return out, nil
}

// SaveViolations evaluates every commit rule without short-circuiting.
func (s State) SaveViolations() []*ValidationError {
	var out []*ValidationError

	if len(s.entries) != formation.SquadSize {
		out = append(out, &ValidationError{
			Reason:   ReasonIncompleteRoster,
			Expected: formation.SquadSize,
			Actual:   int64(len(s.entries)),
		})
	}

	counts := s.Counts()
	for _, pos := range player.OrderedPositions {
		quota := s.formation.QuotaFor(pos)
		if counts[pos] != quota {
			out = append(out, &ValidationError{
				Reason:   ReasonQuotaMismatch,
				Position: pos,
				Expected: int64(quota),
				Actual:   int64(counts[pos]),
			})
		}
	}

	if s.captainID == "" || !s.Contains(s.captainID) {
		out = append(out, &ValidationError{Reason: ReasonCaptainMissing})
	}

	return out
}

// ValidateForSave returns a *SaveError listing every violation, or nil when
// the roster may be committed.
func (s State) ValidateForSave() error {
	violations := s.SaveViolations()
	if len(violations) == 0 {
		return nil
	}
	return &SaveError{Violations: violations}
}

func (s State) Composition() Composition {
	switch {
	case len(s.entries) == 0:
		return CompositionEmpty
	case len(s.SaveViolations()) == 0:
		return CompositionComplete
	default:
		return CompositionBuilding
	}
}
