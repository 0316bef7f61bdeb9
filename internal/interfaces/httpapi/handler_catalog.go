package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/riskibarqy/fantasy-roster/internal/domain/player"
	"github.com/riskibarqy/fantasy-roster/internal/usecase"
)

type playerDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Position      string `json:"position"`
	PositionLabel string `json:"positionLabel"`
	Price         int64  `json:"price"`
	Team          string `json:"team,omitempty"`
	House         string `json:"house,omitempty"`
}

type formationDTO struct {
	Code   string         `json:"code"`
	Quotas map[string]int `json:"quotas"`
}

func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListPlayers")
	defer span.End()

	query := r.URL.Query()
	filter := usecase.PlayerFilter{
		Position: query.Get("position"),
		Team:     query.Get("team"),
		Query:    query.Get("q"),
	}
	if raw := strings.TrimSpace(query.Get("max_price")); raw != "" {
		maxPrice, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(ctx, w, invalidQueryParam("max_price", err))
			return
		}
		filter.MaxPrice = maxPrice
	}

	players, err := h.catalogService.ListPlayers(ctx, filter)
	if err != nil {
		h.logger.WarnContext(ctx, "list players failed", "position", filter.Position, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]playerDTO, 0, len(players))
	for _, p := range players {
		items = append(items, playerToDTO(p))
	}
	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetPlayer")
	defer span.End()

	item, err := h.catalogService.GetPlayer(ctx, r.PathValue("playerID"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, playerToDTO(item))
}

func (h *Handler) ListFormations(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListFormations")
	defer span.End()

	formations := h.catalogService.ListFormations()
	items := make([]formationDTO, 0, len(formations))
	for _, f := range formations {
		items = append(items, formationDTO{Code: f.Code, Quotas: quotasToDTO(f.Quotas)})
	}
	writeSuccess(ctx, w, http.StatusOK, items)
}

func playerToDTO(p player.Player) playerDTO {
	return playerDTO{
		ID:            p.ID,
		Name:          p.Name,
		Position:      string(p.Position),
		PositionLabel: p.Position.Label(),
		Price:         p.Price,
		Team:          p.Team,
		House:         p.House,
	}
}

func quotasToDTO(in map[player.Position]int) map[string]int {
	out := make(map[string]int, len(in))
	for pos, n := range in {
		out[string(pos)] = n
	}
	return out
}
