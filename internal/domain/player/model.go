package player

import (
	"errors"
	"fmt"
	"strings"
)

// Position represents the football position categories a roster is balanced on.
type Position string

const (
	PositionGoalkeeper Position = "GK"
	PositionDefender   Position = "DEF"
	PositionMidfielder Position = "MID"
	PositionForward    Position = "FWD"
)

var AllPositions = map[Position]struct{}{
	PositionGoalkeeper: {},
	PositionDefender:   {},
	PositionMidfielder: {},
	PositionForward:    {},
}

// OrderedPositions lists positions in display order (GK first).
var OrderedPositions = []Position{
	PositionGoalkeeper,
	PositionDefender,
	PositionMidfielder,
	PositionForward,
}

var ErrUnknownPositionLabel = errors.New("unknown position label")

// positionLabels maps the catalog's free-text labels onto the closed enum.
// Keys are lower-cased.
var positionLabels = map[string]Position{
	"goalkeeper": PositionGoalkeeper,
	"gk":         PositionGoalkeeper,
	"defender":   PositionDefender,
	"def":        PositionDefender,
	"midfielder": PositionMidfielder,
	"mid":        PositionMidfielder,
	"forward":    PositionForward,
	"fwd":        PositionForward,
}

// ParsePositionLabel converts a catalog label ("Goalkeeper", "Defender", ...)
// into a Position. Unknown labels are rejected rather than defaulted.
func ParsePositionLabel(label string) (Position, error) {
	pos, ok := positionLabels[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPositionLabel, label)
	}
	return pos, nil
}

// Label returns the catalog label for the position.
func (p Position) Label() string {
	switch p {
	case PositionGoalkeeper:
		return "Goalkeeper"
	case PositionDefender:
		return "Defender"
	case PositionMidfielder:
		return "Midfielder"
	case PositionForward:
		return "Forward"
	default:
		return string(p)
	}
}

func (p Position) Valid() bool {
	_, ok := AllPositions[p]
	return ok
}

// Player is a selectable athlete in the catalog. Records are immutable once loaded.
type Player struct {
	ID       string
	Name     string
	Position Position
	Price    int64
	Team     string
	House    string
}

func (p Player) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("player id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("player name is required")
	}
	if !p.Position.Valid() {
		return fmt.Errorf("invalid player position: %s", p.Position)
	}
	if p.Price < 0 {
		return fmt.Errorf("player price must be >= 0")
	}

	return nil
}
