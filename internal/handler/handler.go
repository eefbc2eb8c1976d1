// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vokorun/runclub/internal/access"
	"github.com/vokorun/runclub/internal/blob"
	"github.com/vokorun/runclub/internal/model"
	"github.com/vokorun/runclub/internal/repository"
	"github.com/vokorun/runclub/internal/service"
)

// Redirect targets carried in error responses.
const (
	redirectHome   = "/"
	redirectSignIn = "/auth"
)

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, resp model.ErrorResponse) {
	writeJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func badRequest(w http.ResponseWriter, action, notice string) {
	writeError(w, http.StatusBadRequest, model.ErrorResponse{
		Error:  "invalid request",
		Action: action,
		Notice: notice,
	})
}

// respondError maps a service error onto the JSON error envelope. Expected
// outcomes (sign-in required, closed events, bad input) are not logged.
func respondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, action string, err error) {
	var (
		perm  *service.PermissionError
		inval *service.ValidationError
	)

	switch {
	case errors.As(err, &perm):
		attrs := []any{"action", perm.Action, "path", r.URL.Path}
		if snap := SnapshotFrom(r.Context()); snap.SignedIn() {
			attrs = append(attrs, "user_id", snap.Identity.ID, "role", snap.Role)
		}
		log.Warn("access denied", attrs...)
		writeError(w, http.StatusForbidden, model.ErrorResponse{
			Error:    "permission denied",
			Action:   string(perm.Action),
			Notice:   access.Notice(perm.Action),
			Redirect: redirectHome,
		})

	case errors.Is(err, service.ErrAuthRequired):
		writeError(w, http.StatusUnauthorized, model.ErrorResponse{
			Error:    "sign in required",
			Action:   action,
			Notice:   "Please sign in to continue",
			Redirect: redirectSignIn,
		})

	case errors.Is(err, service.ErrEventClosed):
		writeError(w, http.StatusConflict, model.ErrorResponse{
			Error:  "event has ended",
			Action: action,
			Notice: "Registration is closed for this event",
		})

	case errors.As(err, &inval):
		badRequest(w, action, inval.Message)

	case errors.Is(err, blob.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, model.ErrorResponse{
			Error:  "upload too large",
			Action: action,
			Notice: err.Error(),
		})

	case errors.Is(err, blob.ErrUnsupportedType), errors.Is(err, blob.ErrTooManyPixels):
		badRequest(w, action, err.Error())

	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, model.ErrorResponse{
			Error:  "not found",
			Action: action,
			Notice: "We couldn't find that event",
		})

	case errors.Is(err, repository.ErrStoreUnavailable):
		log.Error("store unavailable", "action", action, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, model.ErrorResponse{
			Error:  "store unavailable",
			Action: action,
			Notice: "The service is temporarily unavailable. Please try again.",
		})

	default:
		log.Error("request failed", "action", action, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, model.ErrorResponse{
			Error:  "internal error",
			Action: action,
			Notice: "Something went wrong. Please try again.",
		})
	}
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
