package roster

import (
	"fmt"

	"github.com/riskibarqy/fantasy-roster/internal/domain/player"
)

// Operation is a single roster mutation.
type Operation interface {
	Apply(State) (State, error)
	Name() string
}

type AddPlayer struct {
	Player player.Player
}

func (op AddPlayer) Apply(s State) (State, error) { return s.Add(op.Player) }
func (op AddPlayer) Name() string                 { return "add_player" }

type RemovePlayer struct {
	PlayerID string
}

func (op RemovePlayer) Apply(s State) (State, error) { return s.Remove(op.PlayerID) }
func (op RemovePlayer) Name() string                 { return "remove_player" }

type SetCaptain struct {
	PlayerID string
}

func (op SetCaptain) Apply(s State) (State, error) { return s.SetCaptain(op.PlayerID) }
func (op SetCaptain) Name() string                 { return "set_captain" }

type ChangeFormation struct {
	Code string
}

func (op ChangeFormation) Apply(s State) (State, error) { return s.ChangeFormation(op.Code) }
func (op ChangeFormation) Name() string                 { return "change_formation" }

// OperationError identifies which operation of a batch failed.
type OperationError struct {
	Index int
	Op    string
	Err   error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %d (%s): %v", e.Index, e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Apply runs ops in order. The batch is all-or-nothing: on the first failure
// the original state is returned together with an *OperationError.
func Apply(s State, ops ...Operation) (State, error) {
	next := s
	for i, op := range ops {
		if op == nil {
			return s, &OperationError{Index: i, Op: "nil", Err: ErrValidation}
		}
		applied, err := op.Apply(next)
		if err != nil {
			return s, &OperationError{Index: i, Op: op.Name(), Err: err}
		}
		next = applied
	}
	return next, nil
}
