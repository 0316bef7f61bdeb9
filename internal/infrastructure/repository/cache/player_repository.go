package cache

import (
	"context"
	"sort"
	"strings"

	"github.com/riskibarqy/fantasy-roster/internal/domain/player"
	basecache "github.com/riskibarqy/fantasy-roster/internal/platform/cache"
)

const playerKeyPrefix = "player:"

// PlayerRepository caches catalog reads in front of another repository.
type PlayerRepository struct {
	next  player.Repository
	cache *basecache.Store
}

func NewPlayerRepository(next player.Repository, cache *basecache.Store) *PlayerRepository {
	return &PlayerRepository{next: next, cache: cache}
}

func (r *PlayerRepository) List(ctx context.Context) ([]player.Player, error) {
	v, err := r.cache.GetOrLoad(ctx, playerKeyPrefix+"list", func(ctx context.Context) (any, error) {
		items, err := r.next.List(ctx)
		if err != nil {
			return nil, err
		}
		return append([]player.Player(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]player.Player)
	return append([]player.Player(nil), items...), nil
}

func (r *PlayerRepository) GetByID(ctx context.Context, playerID string) (player.Player, error) {
	v, err := r.cache.GetOrLoad(ctx, playerKeyPrefix+"id:"+playerID, func(ctx context.Context) (any, error) {
		return r.next.GetByID(ctx, playerID)
	})
	if err != nil {
		return player.Player{}, err
	}

	item, _ := v.(player.Player)
	return item, nil
}

func (r *PlayerRepository) GetByIDs(ctx context.Context, playerIDs []string) ([]player.Player, error) {
	ids := append([]string(nil), playerIDs...)
	sort.Strings(ids)

	key := playerKeyPrefix + "ids:" + strings.Join(ids, ",")
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		items, err := r.next.GetByIDs(ctx, playerIDs)
		if err != nil {
			return nil, err
		}
		return append([]player.Player(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]player.Player)
	return append([]player.Player(nil), items...), nil
}

// Invalidate drops every cached catalog entry.
func (r *PlayerRepository) Invalidate(ctx context.Context) {
	r.cache.DeletePrefix(ctx, playerKeyPrefix)
}
