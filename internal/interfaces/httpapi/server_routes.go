package httpapi

import (
	"net/http"

	"github.com/riskibarqy/fantasy-roster/internal/domain/user"
)

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerCatalogRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/players", handler.ListPlayers)
	mux.HandleFunc("GET /v1/players/{playerID}", handler.GetPlayer)
	mux.HandleFunc("GET /v1/formations", handler.ListFormations)
}

func registerRosterRoutes(mux *http.ServeMux, handler *Handler, verifier user.TokenVerifier) {
	auth := func(fn http.HandlerFunc) http.Handler {
		return RequireAuth(verifier, fn)
	}

	mux.Handle("POST /v1/roster/session", auth(handler.StartSession))
	mux.Handle("DELETE /v1/roster/session", auth(handler.EndSession))
	mux.Handle("GET /v1/roster", auth(handler.GetRoster))
	mux.Handle("GET /v1/roster/validation", auth(handler.ValidateRoster))
	mux.Handle("POST /v1/roster/players", auth(handler.AddPlayer))
	mux.Handle("DELETE /v1/roster/players/{playerID}", auth(handler.RemovePlayer))
	mux.Handle("PUT /v1/roster/captain", auth(handler.SetCaptain))
	mux.Handle("PUT /v1/roster/formation", auth(handler.ChangeFormation))
	mux.Handle("POST /v1/roster/operations", auth(handler.ApplyOperations))
	mux.Handle("POST /v1/roster/commit", auth(handler.CommitRoster))
	mux.Handle("GET /v1/roster/commit", auth(handler.GetCommitStatus))
}
