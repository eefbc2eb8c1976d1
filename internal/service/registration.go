package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vokorun/runclub/internal/lifecycle"
	"github.com/vokorun/runclub/internal/model"
	"github.com/vokorun/runclub/internal/repository"
)

// RegistrationState is where a (user, event) pair sits in the registration
// state machine. Blocked absorbs both other states once the event has ended.
type RegistrationState string

const (
	Unregistered RegistrationState = "unregistered"
	Registered   RegistrationState = "registered"
	Blocked      RegistrationState = "blocked"
)

// RegistrationStore is the event_registrations collection.
type RegistrationStore interface {
	Find(ctx context.Context, eventID, userID string) (*model.Registration, error)
	Put(ctx context.Context, reg model.Registration) error
	Delete(ctx context.Context, id string) error
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
	ListByUser(ctx context.Context, userID string) ([]model.Registration, error)
}

// EventReader loads single events.
type EventReader interface {
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// ToggleResult is the outcome of a successful toggle.
type ToggleResult struct {
	State        RegistrationState   `json:"state"`
	Registration *model.Registration `json:"registration,omitempty"`
}

// RegistrationService runs the register/unregister state machine.
type RegistrationService struct {
	events        EventReader
	registrations RegistrationStore
	now           func() time.Time
	log           *slog.Logger
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(events EventReader, registrations RegistrationStore, log *slog.Logger) *RegistrationService {
	if log == nil {
		log = slog.Default()
	}
	return &RegistrationService{events: events, registrations: registrations, now: time.Now, log: log}
}

// Toggle registers identity for the event, or unregisters it if already
// registered.
//
// A nil identity yields ErrAuthRequired and an ended event ErrEventClosed;
// neither touches the store. The existence check and the write are separate
// store calls. Creation uses the pair's deterministic ID, so a racing second
// create overwrites the first instead of adding a row.
func (s *RegistrationService) Toggle(ctx context.Context, identity *model.Identity, eventID string) (*ToggleResult, error) {
	if identity == nil {
		return nil, ErrAuthRequired
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !lifecycle.Accepting(event.TargetDate, now) {
		return nil, ErrEventClosed
	}

	existing, err := s.registrations.Find(ctx, event.ID, identity.ID)
	switch {
	case err == nil:
		if err := s.registrations.Delete(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("unregister: %w", err)
		}
		s.log.Info("registration removed", "event_id", event.ID, "user_id", identity.ID)
		return &ToggleResult{State: Unregistered}, nil

	case errors.Is(err, repository.ErrNotFound):
		reg := model.Registration{
			ID:           model.RegistrationID(event.ID, identity.ID),
			UserID:       identity.ID,
			EventID:      event.ID,
			RegisteredAt: now.UTC(),
		}
		if err := s.registrations.Put(ctx, reg); err != nil {
			return nil, fmt.Errorf("register: %w", err)
		}
		s.log.Info("registration created", "event_id", event.ID, "user_id", identity.ID)
		return &ToggleResult{State: Registered, Registration: &reg}, nil

	default:
		return nil, fmt.Errorf("check registration: %w", err)
	}
}

// State reports the registration state of identity for event without
// changing it. A nil identity is never registered.
func (s *RegistrationService) State(ctx context.Context, identity *model.Identity, event *model.Event) (RegistrationState, error) {
	if !lifecycle.Accepting(event.TargetDate, s.now()) {
		return Blocked, nil
	}
	if identity == nil {
		return Unregistered, nil
	}
	_, err := s.registrations.Find(ctx, event.ID, identity.ID)
	switch {
	case err == nil:
		return Registered, nil
	case errors.Is(err, repository.ErrNotFound):
		return Unregistered, nil
	default:
		return Unregistered, err
	}
}
