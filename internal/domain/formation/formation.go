package formation

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/riskibarqy/fantasy-roster/internal/domain/player"
)

// SquadSize is the fixed roster size, one goalkeeper plus ten outfield players.
const SquadSize = 11

const outfieldSlots = SquadSize - 1

var ErrInvalidFormationCode = errors.New("invalid formation code")

// DefaultCodes are the formations offered when no catalog is configured.
var DefaultCodes = []string{"4-3-3", "3-4-3", "4-4-2", "5-3-2", "3-5-2"}

// Formation is a parsed DEF-MID-FWD code.
type Formation struct {
	code     string
	defender int
	midfield int
	forward  int
}

func (f Formation) Code() string {
	return f.code
}

func (f Formation) String() string {
	return f.code
}

func (f Formation) IsZero() bool {
	return f.code == ""
}

// QuotaFor returns how many players of the given position the formation admits.
func (f Formation) QuotaFor(pos player.Position) int {
	switch pos {
	case player.PositionGoalkeeper:
		return 1
	case player.PositionDefender:
		return f.defender
	case player.PositionMidfielder:
		return f.midfield
	case player.PositionForward:
		return f.forward
	default:
		return 0
	}
}

// Quotas returns a copy of the per-position quotas.
func (f Formation) Quotas() map[player.Position]int {
	out := make(map[player.Position]int, len(player.OrderedPositions))
	for _, pos := range player.OrderedPositions {
		out[pos] = f.QuotaFor(pos)
	}
	return out
}

// Matches reports whether counts fill every quota exactly.
func (f Formation) Matches(counts map[player.Position]int) bool {
	for _, pos := range player.OrderedPositions {
		if counts[pos] != f.QuotaFor(pos) {
			return false
		}
	}
	return true
}

// parseCode checks the structural rules of a code without consulting a catalog.
func parseCode(code string) (Formation, error) {
	normalized := strings.TrimSpace(code)
	parts := strings.Split(normalized, "-")
	if len(parts) != 3 {
		return Formation{}, fmt.Errorf("%w: %q must be DEF-MID-FWD", ErrInvalidFormationCode, code)
	}

	counts := make([]int, 3)
	total := 0
	for i, part := range parts {
		if part == "" || strings.TrimLeft(part, "0123456789") != "" {
			return Formation{}, fmt.Errorf("%w: %q has non-numeric segment %q", ErrInvalidFormationCode, code, part)
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return Formation{}, fmt.Errorf("%w: %q: %v", ErrInvalidFormationCode, code, err)
		}
		counts[i] = n
		total += n
	}
	if total != outfieldSlots {
		return Formation{}, fmt.Errorf("%w: %q sums to %d, expected %d", ErrInvalidFormationCode, code, total, outfieldSlots)
	}

	return Formation{
		code:     fmt.Sprintf("%d-%d-%d", counts[0], counts[1], counts[2]),
		defender: counts[0],
		midfield: counts[1],
		forward:  counts[2],
	}, nil
}

// Policy is the catalog of formations a participant may choose from.
type Policy struct {
	offered map[string]Formation
	order   []string
}

// NewPolicy builds a policy offering the given codes. Every code must be
// structurally valid; duplicates are collapsed.
func NewPolicy(codes ...string) (Policy, error) {
	if len(codes) == 0 {
		return Policy{}, fmt.Errorf("%w: at least one formation must be offered", ErrInvalidFormationCode)
	}

	p := Policy{offered: make(map[string]Formation, len(codes))}
	for _, code := range codes {
		f, err := parseCode(code)
		if err != nil {
			return Policy{}, err
		}
		if _, exists := p.offered[f.code]; exists {
			continue
		}
		p.offered[f.code] = f
		p.order = append(p.order, f.code)
	}
	return p, nil
}

func DefaultPolicy() Policy {
	p, err := NewPolicy(DefaultCodes...)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse converts code into a Formation, rejecting malformed codes and codes
// outside the offered catalog.
func (p Policy) Parse(code string) (Formation, error) {
	f, err := parseCode(code)
	if err != nil {
		return Formation{}, err
	}
	if _, ok := p.offered[f.code]; !ok {
		return Formation{}, fmt.Errorf("%w: %q is not offered", ErrInvalidFormationCode, code)
	}
	return f, nil
}

// Codes lists offered codes in configuration order.
func (p Policy) Codes() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

func (p Policy) Formations() []Formation {
	out := make([]Formation, 0, len(p.order))
	for _, code := range p.order {
		out = append(out, p.offered[code])
	}
	return out
}

// Infer returns the offered formation whose quotas are filled exactly by
// counts. When several match (never for distinct codes) the first offered wins.
func (p Policy) Infer(counts map[player.Position]int) (Formation, bool) {
	for _, code := range p.order {
		f := p.offered[code]
		if f.Matches(counts) {
			return f, true
		}
	}
	return Formation{}, false
}

// Closest returns the offered formation that admits counts with the fewest
// over-quota players. Ties keep configuration order.
func (p Policy) Closest(counts map[player.Position]int) Formation {
	type scored struct {
		f    Formation
		over int
	}
	candidates := make([]scored, 0, len(p.order))
	for _, code := range p.order {
		f := p.offered[code]
		over := 0
		for _, pos := range player.OrderedPositions {
			if diff := counts[pos] - f.QuotaFor(pos); diff > 0 {
				over += diff
			}
		}
		candidates = append(candidates, scored{f: f, over: over})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].over < candidates[j].over
	})
	if len(candidates) == 0 {
		return Formation{}
	}
	return candidates[0].f
}
