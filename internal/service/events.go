// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vokorun/runclub/internal/access"
	"github.com/vokorun/runclub/internal/auth"
	"github.com/vokorun/runclub/internal/lifecycle"
	"github.com/vokorun/runclub/internal/model"
	"github.com/vokorun/runclub/internal/repository"
)

// Field limits for event payloads.
const (
	maxTitleLen       = 200
	maxCreatorLen     = 100
	maxDescriptionLen = 2000
	maxAddressLen     = 300
)

// Display formats, applied in the service's location at read time.
const (
	displayDateLayout = "January 02, 2006"
	displayTimeLayout = "3:04 PM"
)

// EventStore is the events collection.
type EventStore interface {
	EventReader
	Create(ctx context.Context, createdBy string, in model.EventInput) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	ListByCreator(ctx context.Context, userID string) ([]model.Event, error)
	Update(ctx context.Context, id string, in model.EventInput) (*model.Event, error)
	Delete(ctx context.Context, id string) error
}

// RoleDirectory looks up role records in bulk, for registrant names.
type RoleDirectory interface {
	GetMany(ctx context.Context, ids []string) (map[string]model.RoleRecord, error)
}

// EventView is an event as presented: the stored document plus everything
// derived from it at read time.
type EventView struct {
	model.Event
	Status       lifecycle.Status  `json:"status"`
	Date         string            `json:"date"`
	Time         string            `json:"time"`
	Registration RegistrationState `json:"registration,omitempty"`
}

// ListFilter narrows ListEvents. A zero Day lists every event.
type ListFilter struct {
	Day time.Time
}

// MyEvents is the caller's personal view.
type MyEvents struct {
	Registered []EventView `json:"registered"`
	Created    []EventView `json:"created"`
}

// EventService orchestrates event-related business operations.
type EventService struct {
	events        EventStore
	registrations *RegistrationService
	regStore      RegistrationStore
	roles         RoleDirectory
	loc           *time.Location
	now           func() time.Time
	log           *slog.Logger
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(
	events EventStore,
	registrations *RegistrationService,
	regStore RegistrationStore,
	roles RoleDirectory,
	loc *time.Location,
	log *slog.Logger,
) *EventService {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &EventService{
		events:        events,
		registrations: registrations,
		regStore:      regStore,
		roles:         roles,
		loc:           loc,
		now:           time.Now,
		log:           log,
	}
}

// Location returns the zone used for display strings and day filters.
func (s *EventService) Location() *time.Location {
	return s.loc
}

func (s *EventService) view(e model.Event, now time.Time) EventView {
	start := e.TargetDate.In(s.loc)
	timeStr := start.Format(displayTimeLayout)
	if !e.EndsAt.IsZero() {
		timeStr += " - " + e.EndsAt.In(s.loc).Format(displayTimeLayout)
	}
	return EventView{
		Event:  e,
		Status: lifecycle.Of(e.TargetDate, now),
		Date:   start.Format(displayDateLayout),
		Time:   timeStr,
	}
}

func (s *EventService) views(events []model.Event, now time.Time) []EventView {
	out := make([]EventView, 0, len(events))
	for _, e := range events {
		out = append(out, s.view(e, now))
	}
	return out
}

func deny(action access.Action, snap auth.Snapshot, event *model.Event) error {
	if !snap.SignedIn() {
		return ErrAuthRequired
	}
	if access.Check(snap.Role, snap.Identity, action, event).Allowed() {
		return nil
	}
	return &PermissionError{Action: action}
}

// ─── Validation ───────────────────────────────────────────────────────────────

// defaultCreator picks the organiser name shown on an event when none is given.
func defaultCreator(id *model.Identity) string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	if local, _, ok := strings.Cut(id.Email, "@"); ok && local != "" {
		return local
	}
	return "Anonymous"
}

func checkLen(field, value string, limit int) error {
	n := utf8.RuneCountInString(value)
	if n == 0 {
		return invalid(field, "%s is required", field)
	}
	if n > limit {
		return invalid(field, "%s must be less than %d characters", field, limit)
	}
	return nil
}

func normalizeInput(in model.EventInput, caller *model.Identity) (model.EventInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Creator = strings.TrimSpace(in.Creator)
	in.Description = strings.TrimSpace(in.Description)
	in.Address = strings.TrimSpace(in.Address)
	in.BackgroundImageURL = strings.TrimSpace(in.BackgroundImageURL)
	in.LumaLink = strings.TrimSpace(in.LumaLink)
	if in.Creator == "" {
		in.Creator = defaultCreator(caller)
	}

	for _, c := range []struct {
		field, value string
		limit        int
	}{
		{"title", in.Title, maxTitleLen},
		{"creator", in.Creator, maxCreatorLen},
		{"description", in.Description, maxDescriptionLen},
		{"address", in.Address, maxAddressLen},
	} {
		if err := checkLen(c.field, c.value, c.limit); err != nil {
			return in, err
		}
	}

	if in.BackgroundImageURL == "" {
		return in, invalid("background_image_url", "an event image is required")
	}
	images := make([]string, 0, len(in.SecondaryImages))
	for _, img := range in.SecondaryImages {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	in.SecondaryImages = images

	if in.TargetDate.IsZero() {
		return in, invalid("target_date", "a start date and time is required")
	}
	if in.EndsAt.IsZero() {
		return in, invalid("ends_at", "an end date and time is required")
	}
	if !in.EndsAt.After(in.TargetDate) {
		return in, invalid("ends_at", "end date/time must be after start date/time")
	}

	if in.LumaLink != "" {
		u, err := url.Parse(in.LumaLink)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return in, invalid("luma_link", "luma_link must be an http(s) URL")
		}
	}
	return in, nil
}

// ─── Operations ───────────────────────────────────────────────────────────────

// CreateEvent validates the payload and stores a new event owned by the caller.
func (s *EventService) CreateEvent(ctx context.Context, caller auth.Snapshot, in model.EventInput) (*EventView, error) {
	if err := deny(access.CreateEvent, caller, nil); err != nil {
		return nil, err
	}
	in, err := normalizeInput(in, caller.Identity)
	if err != nil {
		return nil, err
	}

	event, err := s.events.Create(ctx, caller.Identity.ID, in)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.log.Info("event created", "event_id", event.ID, "user_id", caller.Identity.ID)
	v := s.view(*event, s.now())
	return &v, nil
}

// UpdateEvent replaces the editable fields of an event the caller created.
func (s *EventService) UpdateEvent(ctx context.Context, caller auth.Snapshot, id string, in model.EventInput) (*EventView, error) {
	if !caller.SignedIn() {
		return nil, ErrAuthRequired
	}
	current, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := deny(access.EditEvent, caller, current); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Creator) == "" {
		in.Creator = current.Creator
	}
	in, err = normalizeInput(in, caller.Identity)
	if err != nil {
		return nil, err
	}

	event, err := s.events.Update(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	s.log.Info("event updated", "event_id", event.ID, "user_id", caller.Identity.ID)
	v := s.view(*event, s.now())
	return &v, nil
}

// DeleteEvent removes an event and its registrations.
func (s *EventService) DeleteEvent(ctx context.Context, caller auth.Snapshot, id string) error {
	if err := deny(access.DeleteEvent, caller, nil); err != nil {
		return err
	}
	if err := s.events.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete event: %w", err)
	}
	s.log.Info("event deleted", "event_id", id, "user_id", caller.Identity.ID)
	return nil
}

// GetEvent returns one event with its status and, for a signed-in caller,
// their registration state. A failed registration lookup leaves the state
// unknown rather than failing the read.
func (s *EventService) GetEvent(ctx context.Context, caller auth.Snapshot, id string) (*EventView, error) {
	if id == "" {
		return nil, repository.ErrNotFound
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	v := s.view(*event, s.now())
	state, err := s.registrations.State(ctx, caller.Identity, event)
	if err != nil {
		s.log.Warn("registration state unavailable", "event_id", id, "error", err)
	} else {
		v.Registration = state
	}
	return &v, nil
}

// ListEvents returns events in discovery order: everything not yet ended by
// start time, then the ended ones by start time.
func (s *EventService) ListEvents(ctx context.Context, f ListFilter) ([]EventView, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	now := s.now()
	var active, ended []EventView
	for _, e := range events {
		if !f.Day.IsZero() && !sameDay(e.TargetDate.In(s.loc), f.Day.In(s.loc)) {
			continue
		}
		v := s.view(e, now)
		if v.Status == lifecycle.Ended {
			ended = append(ended, v)
		} else {
			active = append(active, v)
		}
	}
	return append(append(make([]EventView, 0, len(active)+len(ended)), active...), ended...), nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// AdminEvents lists every event for the admin console.
func (s *EventService) AdminEvents(ctx context.Context, caller auth.Snapshot) ([]EventView, error) {
	if err := deny(access.ViewAdminConsole, caller, nil); err != nil {
		return nil, err
	}
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return s.views(events, s.now()), nil
}

// MyEvents returns the events the caller registered for and, for admins,
// the events they created. Registrations whose event is gone are skipped.
func (s *EventService) MyEvents(ctx context.Context, caller auth.Snapshot) (*MyEvents, error) {
	if !caller.SignedIn() {
		return nil, ErrAuthRequired
	}
	now := s.now()
	out := &MyEvents{Registered: []EventView{}, Created: []EventView{}}

	regs, err := s.regStore.ListByUser(ctx, caller.Identity.ID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	for _, reg := range regs {
		event, err := s.events.GetByID(ctx, reg.EventID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load registered event: %w", err)
		}
		v := s.view(*event, now)
		v.Registration = Registered
		if v.Status == lifecycle.Ended {
			v.Registration = Blocked
		}
		out.Registered = append(out.Registered, v)
	}

	if caller.IsAdmin() {
		created, err := s.events.ListByCreator(ctx, caller.Identity.ID)
		if err != nil {
			return nil, fmt.Errorf("list created events: %w", err)
		}
		out.Created = s.views(created, now)
	}
	return out, nil
}

// Registrants lists who registered for an event, most recent first. Only the
// event's creator and admins may see it.
func (s *EventService) Registrants(ctx context.Context, caller auth.Snapshot, eventID string) ([]model.Registrant, error) {
	if !caller.SignedIn() {
		return nil, ErrAuthRequired
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := deny(access.ViewRegistrants, caller, event); err != nil {
		return nil, err
	}

	regs, err := s.regStore.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	ids := make([]string, 0, len(regs))
	for _, reg := range regs {
		ids = append(ids, reg.UserID)
	}
	records, err := s.roles.GetMany(ctx, ids)
	if err != nil {
		s.log.Warn("registrant names unavailable", "event_id", eventID, "error", err)
		records = nil
	}

	out := make([]model.Registrant, 0, len(regs))
	for _, reg := range regs {
		name := "Anonymous"
		if local, _, ok := strings.Cut(records[reg.UserID].Email, "@"); ok && local != "" {
			name = local
		}
		out = append(out, model.Registrant{UserID: reg.UserID, DisplayName: name, RegisteredAt: reg.RegisteredAt})
	}
	return out, nil
}
