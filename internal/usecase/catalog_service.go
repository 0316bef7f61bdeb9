package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/riskibarqy/fantasy-roster/internal/domain/formation"
	"github.com/riskibarqy/fantasy-roster/internal/domain/player"
)

// PlayerFilter narrows the catalog listing. Empty fields match everything.
type PlayerFilter struct {
	Position string
	Team     string
	Query    string
	MaxPrice int64
}

// FormationView is an offered formation with its quotas.
type FormationView struct {
	Code   string
	Quotas map[player.Position]int
}

type CatalogService struct {
	playerRepo player.Repository
	policy     formation.Policy
}

func NewCatalogService(playerRepo player.Repository, policy formation.Policy) *CatalogService {
	return &CatalogService{
		playerRepo: playerRepo,
		policy:     policy,
	}
}

func (s *CatalogService) ListPlayers(ctx context.Context, filter PlayerFilter) ([]player.Player, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.ListPlayers")
	defer span.End()

	var position player.Position
	if raw := strings.TrimSpace(filter.Position); raw != "" {
		pos, err := player.ParsePositionLabel(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		position = pos
	}
	if filter.MaxPrice < 0 {
		return nil, fmt.Errorf("%w: max price must be >= 0", ErrInvalidInput)
	}

	items, err := s.playerRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	team := strings.ToLower(strings.TrimSpace(filter.Team))
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]player.Player, 0, len(items))
	for _, item := range items {
		if position != "" && item.Position != position {
			continue
		}
		if team != "" && strings.ToLower(item.Team) != team {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(item.Name), query) {
			continue
		}
		if filter.MaxPrice > 0 && item.Price > filter.MaxPrice {
			continue
		}
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price > out[j].Price
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *CatalogService) GetPlayer(ctx context.Context, playerID string) (player.Player, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.GetPlayer")
	defer span.End()

	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return player.Player{}, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}

	item, err := s.playerRepo.GetByID(ctx, playerID)
	if errors.Is(err, player.ErrPlayerNotFound) {
		return player.Player{}, fmt.Errorf("%w: player=%s", ErrNotFound, playerID)
	}
	if err != nil {
		return player.Player{}, fmt.Errorf("get player by id: %w", err)
	}
	return item, nil
}

func (s *CatalogService) ListFormations() []FormationView {
	formations := s.policy.Formations()
	out := make([]FormationView, 0, len(formations))
	for _, f := range formations {
		out = append(out, FormationView{Code: f.Code(), Quotas: f.Quotas()})
	}
	return out
}
