package player

import (
	"context"
	"errors"
)

var ErrPlayerNotFound = errors.New("player not found")

// Repository is the read-only player catalog consumed by the roster engine.
type Repository interface {
	List(ctx context.Context) ([]Player, error)
	GetByID(ctx context.Context, playerID string) (Player, error)
	GetByIDs(ctx context.Context, playerIDs []string) ([]Player, error)
}
