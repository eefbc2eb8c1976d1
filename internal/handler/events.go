package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vokorun/runclub/internal/access"
	"github.com/vokorun/runclub/internal/model"
	"github.com/vokorun/runclub/internal/repository"
	"github.com/vokorun/runclub/internal/service"
)

// EventHandler holds the event and registration HTTP handlers.
type EventHandler struct {
	events        *service.EventService
	registrations *service.RegistrationService
	log           *slog.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(events *service.EventService, registrations *service.RegistrationService, log *slog.Logger) *EventHandler {
	return &EventHandler{events: events, registrations: registrations, log: log}
}

// eventList is the discovery response. Degraded is set when the store could
// not be read and Events is empty because of it.
type eventList struct {
	Events   []service.EventView `json:"events"`
	Degraded bool                `json:"degraded"`
}

// ListEvents handles GET /api/events
// Optional ?date=YYYY-MM-DD keeps events starting on that calendar day.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var f service.ListFilter
	if d := r.URL.Query().Get("date"); d != "" {
		day, err := time.ParseInLocation("2006-01-02", d, h.events.Location())
		if err != nil {
			badRequest(w, "listEvents", "date must be formatted as YYYY-MM-DD")
			return
		}
		f.Day = day
	}

	events, err := h.events.ListEvents(r.Context(), f)
	if err != nil {
		if errors.Is(err, repository.ErrStoreUnavailable) {
			h.log.Error("listing events from degraded store", "error", err)
			writeJSON(w, http.StatusOK, eventList{Events: []service.EventView{}, Degraded: true})
			return
		}
		respondError(w, r, h.log, "listEvents", err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []service.EventView{}
	}
	writeJSON(w, http.StatusOK, eventList{Events: events})
}

// GetEvent handles GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEvent(r.Context(), SnapshotFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.log, "viewEvent", err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// CreateEvent handles POST /api/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in model.EventInput
	if err := decodeJSON(w, r, &in); err != nil {
		badRequest(w, string(access.CreateEvent), "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.CreateEvent(r.Context(), SnapshotFrom(r.Context()), in)
	if err != nil {
		respondError(w, r, h.log, string(access.CreateEvent), err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// UpdateEvent handles PUT /api/events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in model.EventInput
	if err := decodeJSON(w, r, &in); err != nil {
		badRequest(w, string(access.EditEvent), "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.UpdateEvent(r.Context(), SnapshotFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, h.log, string(access.EditEvent), err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /api/events/{id}
// Registrations for the event are removed with it.
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.events.DeleteEvent(r.Context(), SnapshotFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, h.log, string(access.DeleteEvent), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleRegistration handles POST /api/events/{id}/registration
// Registers the caller, or unregisters them if they already are.
func (h *EventHandler) ToggleRegistration(w http.ResponseWriter, r *http.Request) {
	snap := SnapshotFrom(r.Context())
	res, err := h.registrations.Toggle(r.Context(), snap.Identity, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.log, "toggleRegistration", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListRegistrants handles GET /api/events/{id}/registrants
func (h *EventHandler) ListRegistrants(w http.ResponseWriter, r *http.Request) {
	regs, err := h.events.Registrants(r.Context(), SnapshotFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.log, string(access.ViewRegistrants), err)
		return
	}
	if regs == nil {
		regs = []model.Registrant{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// MyEvents handles GET /api/me/events
func (h *EventHandler) MyEvents(w http.ResponseWriter, r *http.Request) {
	mine, err := h.events.MyEvents(r.Context(), SnapshotFrom(r.Context()))
	if err != nil {
		respondError(w, r, h.log, "myEvents", err)
		return
	}
	writeJSON(w, http.StatusOK, mine)
}

// AdminEvents handles GET /api/admin/events
func (h *EventHandler) AdminEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.AdminEvents(r.Context(), SnapshotFrom(r.Context()))
	if err != nil {
		respondError(w, r, h.log, string(access.ViewAdminConsole), err)
		return
	}
	if events == nil {
		events = []service.EventView{}
	}
	writeJSON(w, http.StatusOK, events)
}
