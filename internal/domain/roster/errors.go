package roster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/riskibarqy/fantasy-roster/internal/domain/player"
)

// Reason names the roster rule a ValidationError reports.
type Reason string

const (
	ReasonDuplicatePlayer       Reason = "DuplicatePlayer"
	ReasonRosterFull            Reason = "RosterFull"
	ReasonBudgetExceeded        Reason = "BudgetExceeded"
	ReasonPositionQuotaExceeded Reason = "PositionQuotaExceeded"
	ReasonPlayerNotInRoster     Reason = "PlayerNotInRoster"
	ReasonCaptainNotInRoster    Reason = "CaptainNotInRoster"
	ReasonIncompleteRoster      Reason = "IncompleteRoster"
	ReasonQuotaMismatch         Reason = "QuotaMismatch"
	ReasonCaptainMissing        Reason = "CaptainMissing"
)

var (
	ErrValidation = errors.New("roster validation failed")

	ErrDuplicatePlayer       = errors.New("player already in roster")
	ErrRosterFull            = errors.New("roster is full")
	ErrBudgetExceeded        = errors.New("budget exceeded")
	ErrPositionQuotaExceeded = errors.New("position quota exceeded")
	ErrPlayerNotInRoster     = errors.New("player not in roster")
	ErrCaptainNotInRoster    = errors.New("captain not in roster")
	ErrIncompleteRoster      = errors.New("roster incomplete")
	ErrQuotaMismatch         = errors.New("position quota mismatch")
	ErrCaptainMissing        = errors.New("captain missing")
)

// Persistence failures reported by gateways and the commit protocol.
var (
	ErrConnectivityFailure = errors.New("persistence connectivity failure")
	ErrPartialWriteFailure = errors.New("persistence partial write failure")
	ErrCommitInProgress    = errors.New("commit in progress")
	ErrReconcileRequired   = errors.New("roster must be reloaded before commit")
)

var reasonErrors = map[Reason]error{
	ReasonDuplicatePlayer:       ErrDuplicatePlayer,
	ReasonRosterFull:            ErrRosterFull,
	ReasonBudgetExceeded:        ErrBudgetExceeded,
	ReasonPositionQuotaExceeded: ErrPositionQuotaExceeded,
	ReasonPlayerNotInRoster:     ErrPlayerNotInRoster,
	ReasonCaptainNotInRoster:    ErrCaptainNotInRoster,
	ReasonIncompleteRoster:      ErrIncompleteRoster,
	ReasonQuotaMismatch:         ErrQuotaMismatch,
	ReasonCaptainMissing:        ErrCaptainMissing,
}

// ValidationError reports a single violated roster rule. Expected and Actual
// carry the quota and count for position rules, the remaining budget and the
// price for BudgetExceeded, and the squad size and roster size for
// RosterFull and IncompleteRoster.
type ValidationError struct {
	Reason   Reason
	PlayerID string
	Position player.Position
	Expected int64
	Actual   int64
}

func (e *ValidationError) Error() string {
	base := reasonErrors[e.Reason]
	if base == nil {
		base = ErrValidation
	}

	switch e.Reason {
	case ReasonPositionQuotaExceeded, ReasonQuotaMismatch:
		return fmt.Sprintf("%s: position %s expected %d, got %d", base, e.Position, e.Expected, e.Actual)
	case ReasonBudgetExceeded:
		return fmt.Sprintf("%s: player %s costs %d, remaining %d", base, e.PlayerID, e.Actual, e.Expected)
	case ReasonRosterFull, ReasonIncompleteRoster:
		return fmt.Sprintf("%s: expected %d players, got %d", base, e.Expected, e.Actual)
	case ReasonDuplicatePlayer, ReasonPlayerNotInRoster, ReasonCaptainNotInRoster:
		return fmt.Sprintf("%s: %s", base, e.PlayerID)
	default:
		return base.Error()
	}
}

func (e *ValidationError) Unwrap() []error {
	if base, ok := reasonErrors[e.Reason]; ok {
		return []error{ErrValidation, base}
	}
	return []error{ErrValidation}
}

// SaveError lists every rule a roster violates when validated for commit.
type SaveError struct {
	Violations []*ValidationError
}

func (e *SaveError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Error())
	}
	return "roster not save-eligible: " + strings.Join(parts, "; ")
}

func (e *SaveError) Unwrap() []error {
	out := make([]error, 0, len(e.Violations))
	for _, v := range e.Violations {
		out = append(out, v)
	}
	return out
}

// Violations extracts every ValidationError carried by err.
func Violations(err error) []*ValidationError {
	var saveErr *SaveError
	if errors.As(err, &saveErr) {
		out := make([]*ValidationError, len(saveErr.Violations))
		copy(out, saveErr.Violations)
		return out
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return []*ValidationError{vErr}
	}
	return nil
}
