package player

import (
	"errors"
	"testing"
)

func TestParsePositionLabel(t *testing.T) {
	tests := []struct {
		label string
		want  Position
	}{
		{label: "Goalkeeper", want: PositionGoalkeeper},
		{label: "defender", want: PositionDefender},
		{label: "  MIDFIELDER ", want: PositionMidfielder},
		{label: "Forward", want: PositionForward},
		{label: "FWD", want: PositionForward},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			got, err := ParsePositionLabel(tc.label)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected position: got=%s want=%s", got, tc.want)
			}
		})
	}
}

func TestParsePositionLabel_Unknown(t *testing.T) {
	for _, label := range []string{"", "Striker", "Winger", "keeper"} {
		if _, err := ParsePositionLabel(label); !errors.Is(err, ErrUnknownPositionLabel) {
			t.Fatalf("label %q: expected ErrUnknownPositionLabel, got %v", label, err)
		}
	}
}

func TestPositionLabelRoundTrip(t *testing.T) {
	for _, pos := range OrderedPositions {
		got, err := ParsePositionLabel(pos.Label())
		if err != nil {
			t.Fatalf("parse %s: %v", pos.Label(), err)
		}
		if got != pos {
			t.Fatalf("expected %s, got %s", pos, got)
		}
	}
}

func TestPlayerValidate(t *testing.T) {
	valid := Player{ID: "p1", Name: "Keeper", Position: PositionGoalkeeper, Price: 0}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected zero price to be valid, got %v", err)
	}

	negative := valid
	negative.Price = -1
	if err := negative.Validate(); err == nil {
		t.Fatalf("expected error for negative price")
	}

	badPos := valid
	badPos.Position = "ST"
	if err := badPos.Validate(); err == nil {
		t.Fatalf("expected error for invalid position")
	}
}
