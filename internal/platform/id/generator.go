package id

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates opaque IDs suitable for external references.
type Generator interface {
	NewID() (string, error)
}

// UUIDGenerator issues time-ordered UUIDv7 values, so commit ids sort by
// issue time in storage.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) NewID() (string, error) {
	v, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid v7: %w", err)
	}

	return v.String(), nil
}

// SequenceGenerator returns ids from a fixed list, then fails. Intended for tests.
type SequenceGenerator struct {
	ids []string
	pos int
}

func NewSequenceGenerator(ids ...string) *SequenceGenerator {
	return &SequenceGenerator{ids: ids}
}

func (g *SequenceGenerator) NewID() (string, error) {
	if g.pos >= len(g.ids) {
		return "", fmt.Errorf("sequence generator exhausted after %d ids", len(g.ids))
	}
	out := g.ids[g.pos]
	g.pos++
	return out, nil
}
