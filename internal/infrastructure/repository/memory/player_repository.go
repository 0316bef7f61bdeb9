package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/riskibarqy/fantasy-roster/internal/domain/player"
)

type PlayerRepository struct {
	mu      sync.RWMutex
	players []player.Player
	index   map[string]player.Player
}

func NewPlayerRepository(players []player.Player) *PlayerRepository {
	r := &PlayerRepository{}
	r.Replace(players)
	return r
}

// Replace swaps the whole catalog, e.g. after a feed refresh.
func (r *PlayerRepository) Replace(players []player.Player) {
	index := make(map[string]player.Player, len(players))
	list := make([]player.Player, 0, len(players))
	for _, p := range players {
		if _, dup := index[p.ID]; dup {
			continue
		}
		index[p.ID] = p
		list = append(list, p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = list
	r.index = index
}

func (r *PlayerRepository) List(_ context.Context) ([]player.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]player.Player, 0, len(r.players))
	out = append(out, r.players...)

	return out, nil
}

func (r *PlayerRepository) GetByID(_ context.Context, playerID string) (player.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.index[playerID]
	if !ok {
		return player.Player{}, fmt.Errorf("%w: %s", player.ErrPlayerNotFound, playerID)
	}
	return p, nil
}

func (r *PlayerRepository) GetByIDs(_ context.Context, playerIDs []string) ([]player.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]player.Player, 0, len(playerIDs))
	for _, id := range playerIDs {
		p, ok := r.index[id]
		if !ok {
			continue
		}
		out = append(out, p)
	}

	return out, nil
}
