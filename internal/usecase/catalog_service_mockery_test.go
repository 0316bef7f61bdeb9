package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/riskibarqy/fantasy-roster/internal/domain/formation"
	"github.com/riskibarqy/fantasy-roster/internal/domain/player"
	playermock "github.com/riskibarqy/fantasy-roster/internal/mocks/domain/player"
)

func catalogFixture() []player.Player {
	return []player.Player{
		{ID: "p1", Name: "Aarav Mehta", Position: player.PositionForward, Price: 90, Team: "Tata House"},
		{ID: "p2", Name: "Kabir Rao", Position: player.PositionDefender, Price: 55, Team: "Oberoi House"},
		{ID: "p3", Name: "Ishaan Gill", Position: player.PositionForward, Price: 70, Team: "Tata House"},
		{ID: "p4", Name: "Arjun Das", Position: player.PositionGoalkeeper, Price: 70, Team: "Kashmir House"},
	}
}

func TestCatalogService_ListPlayers_FiltersUsingMockery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter PlayerFilter
		want   []string
	}{
		{name: "no filter sorts by price then name", filter: PlayerFilter{}, want: []string{"p1", "p4", "p3", "p2"}},
		{name: "position label", filter: PlayerFilter{Position: "Forward"}, want: []string{"p1", "p3"}},
		{name: "team is case insensitive", filter: PlayerFilter{Team: "tata house"}, want: []string{"p1", "p3"}},
		{name: "name query", filter: PlayerFilter{Query: "rao"}, want: []string{"p2"}},
		{name: "max price", filter: PlayerFilter{MaxPrice: 70}, want: []string{"p4", "p3", "p2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := playermock.NewRepository(t)
			repo.On("List", mock.Anything).Return(catalogFixture(), nil).Once()

			got, err := NewCatalogService(repo, formation.DefaultPolicy()).ListPlayers(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("list players: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("unexpected player count: got=%d want=%d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Fatalf("unexpected player at %d: got=%s want=%s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestCatalogService_ListPlayers_UnknownPositionUsingMockery(t *testing.T) {
	t.Parallel()

	repo := playermock.NewRepository(t)
	_, err := NewCatalogService(repo, formation.DefaultPolicy()).ListPlayers(context.Background(), PlayerFilter{Position: "sweeper"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	repo.AssertNotCalled(t, "List", mock.Anything)
}

func TestCatalogService_GetPlayer_NotFoundUsingMockery(t *testing.T) {
	t.Parallel()

	repo := playermock.NewRepository(t)
	repo.On("GetByID", mock.Anything, "ghost").Return(player.Player{}, player.ErrPlayerNotFound).Once()

	_, err := NewCatalogService(repo, formation.DefaultPolicy()).GetPlayer(context.Background(), " ghost ")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCatalogService_ListFormations(t *testing.T) {
	t.Parallel()

	policy, err := formation.NewPolicy("4-4-2", "3-5-2")
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	got := NewCatalogService(playermock.NewRepository(t), policy).ListFormations()
	if len(got) != 2 || got[0].Code != "4-4-2" || got[1].Code != "3-5-2" {
		t.Fatalf("unexpected formations: %+v", got)
	}
	if got[1].Quotas[player.PositionMidfielder] != 5 || got[1].Quotas[player.PositionGoalkeeper] != 1 {
		t.Fatalf("unexpected 3-5-2 quotas: %+v", got[1].Quotas)
	}
}
