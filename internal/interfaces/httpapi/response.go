package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	sonic "github.com/bytedance/sonic"
	"github.com/valyala/bytebufferpool"

	"github.com/riskibarqy/fantasy-roster/internal/domain/formation"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/usecase"
)

const (
	googleAPIVersion = "2.0"
	errorDomain      = "fantasy-roster"
)

type googleResponseEnvelope struct {
	APIVersion string           `json:"apiVersion"`
	Data       any              `json:"data,omitempty"`
	Error      *googleErrorBody `json:"error,omitempty"`
}

type googleErrorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Status  string            `json:"status"`
	Errors  []googleErrorItem `json:"errors,omitempty"`
}

// googleErrorItem carries one failure. Roster rule violations fill the
// optional location fields so clients can point at the offending slot.
type googleErrorItem struct {
	Domain   string `json:"domain"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
	PlayerID string `json:"playerId,omitempty"`
	Position string `json:"position,omitempty"`
	Expected *int64 `json:"expected,omitempty"`
	Actual   *int64 `json:"actual,omitempty"`
}

type mappedError struct {
	HTTPStatus int
	Reason     string
	Status     string
	Internal   bool
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	_, span := startSpan(ctx, "httpapi.writeJSON")
	defer span.End()

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(payload); err != nil {
		http.Error(w, `{"apiVersion":"2.0","error":{"code":500,"message":"encode response","status":"INTERNAL"}}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	_, _ = w.Write(buf.B)
}

func writeSuccess(ctx context.Context, w http.ResponseWriter, status int, data any) {
	writeJSON(ctx, w, status, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Data:       data,
	})
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	mapped := mapError(err)
	if mapped.Internal {
		writeInternalError(ctx, w)
		return
	}

	message := err.Error()
	items := violationItems(err)
	if len(items) == 0 {
		items = []googleErrorItem{{
			Domain:  errorDomain,
			Reason:  mapped.Reason,
			Message: message,
		}}
	}

	writeJSON(ctx, w, mapped.HTTPStatus, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Error: &googleErrorBody{
			Code:    mapped.HTTPStatus,
			Message: message,
			Status:  mapped.Status,
			Errors:  items,
		},
	})
}

func writeInternalError(ctx context.Context, w http.ResponseWriter) {
	const msg = "internal server error"

	writeJSON(ctx, w, http.StatusInternalServerError, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Error: &googleErrorBody{
			Code:    http.StatusInternalServerError,
			Message: msg,
			Status:  "INTERNAL",
			Errors: []googleErrorItem{
				{
					Domain:  errorDomain,
					Reason:  "internalError",
					Message: msg,
				},
			},
		},
	})
}

func violationItems(err error) []googleErrorItem {
	violations := roster.Violations(err)
	if len(violations) == 0 {
		return nil
	}

	items := make([]googleErrorItem, 0, len(violations))
	for _, v := range violations {
		item := googleErrorItem{
			Domain:   errorDomain,
			Reason:   string(v.Reason),
			Message:  v.Error(),
			PlayerID: v.PlayerID,
			Position: string(v.Position),
		}
		switch v.Reason {
		case roster.ReasonPositionQuotaExceeded, roster.ReasonQuotaMismatch,
			roster.ReasonBudgetExceeded, roster.ReasonRosterFull, roster.ReasonIncompleteRoster:
			expected, actual := v.Expected, v.Actual
			item.Expected = &expected
			item.Actual = &actual
		}
		items = append(items, item)
	}
	return items
}

func mapError(err error) mappedError {
	switch {
	case errors.Is(err, roster.ErrValidation):
		return mappedError{HTTPStatus: http.StatusUnprocessableEntity, Reason: "rosterRuleViolated", Status: "FAILED_PRECONDITION"}
	case errors.Is(err, formation.ErrInvalidFormationCode):
		return mappedError{HTTPStatus: http.StatusBadRequest, Reason: "invalidFormation", Status: "INVALID_ARGUMENT"}
	case errors.Is(err, roster.ErrCommitInProgress):
		return mappedError{HTTPStatus: http.StatusConflict, Reason: "commitInProgress", Status: "ABORTED"}
	case errors.Is(err, roster.ErrReconcileRequired):
		return mappedError{HTTPStatus: http.StatusConflict, Reason: "reconcileRequired", Status: "ABORTED"}
	case errors.Is(err, roster.ErrPartialWriteFailure):
		return mappedError{HTTPStatus: http.StatusInternalServerError, Reason: "partialWriteFailure", Status: "UNKNOWN"}
	case errors.Is(err, roster.ErrConnectivityFailure):
		return mappedError{HTTPStatus: http.StatusServiceUnavailable, Reason: "connectivityFailure", Status: "UNAVAILABLE"}
	case errors.Is(err, usecase.ErrInvalidInput):
		return mappedError{HTTPStatus: http.StatusBadRequest, Reason: "invalidInput", Status: "INVALID_ARGUMENT"}
	case errors.Is(err, usecase.ErrNotFound):
		return mappedError{HTTPStatus: http.StatusNotFound, Reason: "notFound", Status: "NOT_FOUND"}
	case errors.Is(err, usecase.ErrUnauthorized):
		return mappedError{HTTPStatus: http.StatusUnauthorized, Reason: "unauthorized", Status: "UNAUTHENTICATED"}
	case errors.Is(err, usecase.ErrDependencyUnavailable):
		return mappedError{HTTPStatus: http.StatusServiceUnavailable, Reason: "dependencyUnavailable", Status: "UNAVAILABLE"}
	default:
		return mappedError{HTTPStatus: http.StatusInternalServerError, Reason: "internalError", Status: "INTERNAL", Internal: true}
	}
}
