package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/usecase"
)

type addPlayerRequest struct {
	PlayerID string `json:"playerId" validate:"required,max=64"`
}

type setCaptainRequest struct {
	PlayerID string `json:"playerId" validate:"required,max=64"`
}

type changeFormationRequest struct {
	Formation string `json:"formation" validate:"required,max=16"`
}

type operationRequest struct {
	Type      string `json:"type" validate:"required,oneof=add_player remove_player set_captain change_formation"`
	PlayerID  string `json:"playerId" validate:"required_unless=Type change_formation,max=64"`
	Formation string `json:"formation" validate:"required_if=Type change_formation,max=16"`
}

type applyOperationsRequest struct {
	Operations []operationRequest `json:"operations" validate:"required,min=1,max=64,dive"`
}

type rosterPlayerDTO struct {
	playerDTO
	IsCaptain bool `json:"isCaptain"`
}

type violationDTO struct {
	Reason   string `json:"reason"`
	Message  string `json:"message"`
	PlayerID string `json:"playerId,omitempty"`
	Position string `json:"position,omitempty"`
	Expected int64  `json:"expected"`
	Actual   int64  `json:"actual"`
}

type commitStatusDTO struct {
	CommitID    string `json:"commitId,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	Error       string `json:"error,omitempty"`
	IssuedAt    string `json:"issuedAt,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`
	Stale       bool   `json:"stale,omitempty"`
}

type rosterDTO struct {
	UserID          string            `json:"userId"`
	Formation       string            `json:"formation"`
	Quotas          map[string]int    `json:"quotas"`
	Counts          map[string]int    `json:"counts"`
	InitialBudget   int64             `json:"initialBudget"`
	Spent           int64             `json:"spent"`
	BudgetRemaining int64             `json:"budgetRemaining"`
	CaptainID       string            `json:"captainId,omitempty"`
	Players         []rosterPlayerDTO `json:"players"`
	Composition     string            `json:"composition"`
	Saved           bool              `json:"saved"`
	Points          int64             `json:"points"`
	TeamCreated     bool              `json:"teamCreated"`
	LastUpdatedAt   string            `json:"lastUpdatedAt,omitempty"`
	CommitInFlight  bool              `json:"commitInFlight"`
	NeedsReconcile  bool              `json:"needsReconcile"`
	LastCommit      *commitStatusDTO  `json:"lastCommit,omitempty"`
	Violations      []violationDTO    `json:"violations"`
	Version         uint64            `json:"version"`
}

// StartSession opens the caller's roster session. With reload=true the
// session is rebuilt from the last committed snapshot and local edits are lost.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.StartSession")
	defer span.End()

	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	reload, err := boolQuery(r, "reload")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var view usecase.RosterView
	if reload {
		view, err = h.rosterService.Reload(ctx, userID)
	} else {
		view, err = h.rosterService.StartSession(ctx, userID)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "start roster session failed", "user_id", userID, "reload", reload, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, rosterToDTO(view))
}

func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.EndSession")
	defer span.End()

	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	if err := h.rosterService.EndSession(ctx, userID); err != nil {
		writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetRoster")
	defer span.End()

	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	view, err := h.rosterService.View(ctx, userID)
	if err != nil {
		h.logger.WarnContext(ctx, "get roster failed", "user_id", userID, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, rosterToDTO(view))
}

func (h *Handler) ValidateRoster(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ValidateRoster")
	defer span.End()

	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	violations, err := h.rosterService.Validate(ctx, userID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, map[string]any{
		"valid":      len(violations) == 0,
		"violations": violationsToDTO(violations),
	})
}

func (h *Handler) AddPlayer(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.AddPlayer")
	defer span.End()

	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	var req addPlayerRequest
	if err := h.decodeBody(ctx, w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	view, err := h.rosterService.AddPlayer(ctx, userID, req.PlayerID)
	h.writeRoster(ctx, w, "add player", userID, view, err)
}

func (h *Handler) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RemovePlayer")
	defer span.End()

	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	view, err := h.rosterService.RemovePlayer(ctx, userID, r.PathValue("playerID"))
	h.writeRoster(ctx, w, "remove player", userID, view, err)
}

func (h *Handler) SetCaptain(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SetCaptain")
	defer span.End()

	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	var req setCaptainRequest
	if err := h.decodeBody(ctx, w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	view, err := h.rosterService.SetCaptain(ctx, userID, req.PlayerID)
	h.writeRoster(ctx, w, "set captain", userID, view, err)
}

func (h *Handler) ChangeFormation(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ChangeFormation")
	defer span.End()

	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	var req changeFormationRequest
	if err := h.decodeBody(ctx, w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	view, err := h.rosterService.ChangeFormation(ctx, userID, req.Formation)
	h.writeRoster(ctx, w, "change formation", userID, view, err)
}

// ApplyOperations runs a batch atomically: either every operation lands or
// the roster is left as it was.
func (h *Handler) ApplyOperations(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ApplyOperations")
	defer span.End()

	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	var req applyOperationsRequest
	if err := h.decodeBody(ctx, w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	inputs := make([]usecase.OperationInput, 0, len(req.Operations))
	for _, op := range req.Operations {
		inputs = append(inputs, usecase.OperationInput{
			Type:      op.Type,
			PlayerID:  op.PlayerID,
			Formation: op.Formation,
		})
	}

	view, err := h.rosterService.ApplyOperations(ctx, userID, inputs)
	h.writeRoster(ctx, w, "apply operations", userID, view, err)
}

// CommitRoster persists the roster. With async=true the write is queued and
// the response is 202 with the pending commit id.
func (h *Handler) CommitRoster(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CommitRoster")
	defer span.End()

	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	async, err := boolQuery(r, "async")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if async {
		status, err := h.rosterService.CommitAsync(ctx, userID)
		if err != nil {
			h.logger.WarnContext(ctx, "queue roster commit failed", "user_id", userID, "error", err)
			writeError(ctx, w, err)
			return
		}
		writeSuccess(ctx, w, http.StatusAccepted, commitStatusToDTO(status))
		return
	}

	status, err := h.rosterService.Commit(ctx, userID)
	if err != nil {
		h.logger.WarnContext(ctx, "roster commit failed", "user_id", userID, "commit_id", status.CommitID, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, commitStatusToDTO(status))
}

// GetCommitStatus reports the last commit. With wait=true it blocks until an
// in-flight commit settles or the request is cancelled.
func (h *Handler) GetCommitStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetCommitStatus")
	defer span.End()

	userID, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	wait, err := boolQuery(r, "wait")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var status usecase.CommitStatus
	if wait {
		status, err = h.rosterService.WaitCommit(ctx, userID)
	} else {
		var view usecase.RosterView
		view, err = h.rosterService.View(ctx, userID)
		status = view.LastCommit
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, commitStatusToDTO(status))
}

func (h *Handler) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return "", false
	}
	return principal.UserID, true
}

func (h *Handler) writeRoster(ctx context.Context, w http.ResponseWriter, action, userID string, view usecase.RosterView, err error) {
	if err != nil {
		h.logger.InfoContext(ctx, "roster operation rejected", "action", action, "user_id", userID, "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, rosterToDTO(view))
}

func boolQuery(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidQueryParam(name, err)
	}
	return v, nil
}

func rosterToDTO(view usecase.RosterView) rosterDTO {
	players := make([]rosterPlayerDTO, 0, len(view.Entries))
	for _, entry := range view.Entries {
		players = append(players, rosterPlayerDTO{
			playerDTO: playerToDTO(entry.Player),
			IsCaptain: entry.IsCaptain,
		})
	}

	out := rosterDTO{
		UserID:          view.UserID,
		Formation:       view.Formation,
		Quotas:          quotasToDTO(view.Quotas),
		Counts:          quotasToDTO(view.Counts),
		InitialBudget:   view.InitialBudget,
		Spent:           view.Spent,
		BudgetRemaining: view.BudgetRemaining,
		CaptainID:       view.CaptainID,
		Players:         players,
		Composition:     string(view.Composition),
		Saved:           view.Saved,
		Points:          view.Points,
		TeamCreated:     view.TeamCreated,
		LastUpdatedAt:   formatTime(view.LastUpdatedAt),
		CommitInFlight:  view.CommitInFlight,
		NeedsReconcile:  view.NeedsReconcile,
		Violations:      violationsToDTO(view.Violations),
		Version:         view.Version,
	}
	if view.LastCommit.CommitID != "" {
		status := commitStatusToDTO(view.LastCommit)
		out.LastCommit = &status
	}
	return out
}

func violationsToDTO(items []*roster.ValidationError) []violationDTO {
	out := make([]violationDTO, 0, len(items))
	for _, v := range items {
		out = append(out, violationDTO{
			Reason:   string(v.Reason),
			Message:  v.Error(),
			PlayerID: v.PlayerID,
			Position: string(v.Position),
			Expected: v.Expected,
			Actual:   v.Actual,
		})
	}
	return out
}

func commitStatusToDTO(status usecase.CommitStatus) commitStatusDTO {
	return commitStatusDTO{
		CommitID:    status.CommitID,
		Outcome:     string(status.Outcome),
		Error:       status.Error,
		IssuedAt:    formatTime(status.IssuedAt),
		CompletedAt: formatTime(status.CompletedAt),
		Stale:       status.Stale,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
