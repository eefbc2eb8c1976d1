// Package memory is an in-process implementation of the run club collections.
// It backs STORE_DRIVER=memory and doubles as the store in service tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vokorun/runclub/internal/model"
	"github.com/vokorun/runclub/internal/repository"
)

// DB holds every collection behind one lock.
type DB struct {
	mu            sync.RWMutex
	roles         map[string]model.RoleRecord
	events        map[string]model.Event
	registrations map[string]model.Registration
	failure       error
	now           func() time.Time
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		roles:         make(map[string]model.RoleRecord),
		events:        make(map[string]model.Event),
		registrations: make(map[string]model.Registration),
		now:           time.Now,
	}
}

// SetFailure makes every subsequent call fail with err wrapped as
// repository.ErrStoreUnavailable. A nil err restores normal operation.
func (db *DB) SetFailure(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failure = err
}

func (db *DB) check(op string) error {
	if db.failure != nil {
		return fmt.Errorf("%s: %w: %w", op, repository.ErrStoreUnavailable, db.failure)
	}
	return nil
}

// Roles returns the user_roles collection.
func (db *DB) Roles() *Roles { return &Roles{db: db} }

// Events returns the events collection.
func (db *DB) Events() *Events { return &Events{db: db} }

// Registrations returns the event_registrations collection.
func (db *DB) Registrations() *Registrations { return &Registrations{db: db} }

// ─── Role records ─────────────────────────────────────────────────────────────

// Roles is the in-memory user_roles collection.
type Roles struct{ db *DB }

func (r *Roles) Get(_ context.Context, userID string) (*model.RoleRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if err := r.db.check("get role"); err != nil {
		return nil, err
	}
	rec, ok := r.db.roles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (r *Roles) GetMany(_ context.Context, ids []string) (map[string]model.RoleRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if err := r.db.check("list roles"); err != nil {
		return nil, err
	}
	out := make(map[string]model.RoleRecord, len(ids))
	for _, id := range ids {
		if rec, ok := r.db.roles[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (r *Roles) Create(_ context.Context, rec model.RoleRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.check("insert role"); err != nil {
		return err
	}
	if _, exists := r.db.roles[rec.UserID]; exists {
		return fmt.Errorf("insert role: %w: duplicate key %q", repository.ErrStoreUnavailable, rec.UserID)
	}
	r.db.roles[rec.UserID] = rec
	return nil
}

func (r *Roles) Update(_ context.Context, userID string, u repository.RoleUpdate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.check("update role"); err != nil {
		return err
	}
	rec, ok := r.db.roles[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if u.Role != nil {
		rec.Role = *u.Role
	}
	if u.DisplayName != nil {
		rec.DisplayName = *u.DisplayName
	}
	if u.PhotoURL != nil {
		rec.PhotoURL = *u.PhotoURL
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		rec.LastLogin = &t
	}
	r.db.roles[userID] = rec
	return nil
}

// ─── Events ───────────────────────────────────────────────────────────────────

// Events is the in-memory events collection.
type Events struct{ db *DB }

func cloneEvent(e model.Event) model.Event {
	e.SecondaryImages = slices.Clone(e.SecondaryImages)
	if e.SecondaryImages == nil {
		e.SecondaryImages = []string{}
	}
	return e
}

func (r *Events) Create(_ context.Context, createdBy string, in model.EventInput) (*model.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.check("insert event"); err != nil {
		return nil, err
	}
	e := cloneEvent(model.Event{
		ID:                 uuid.New().String(),
		Title:              in.Title,
		Creator:            in.Creator,
		Description:        in.Description,
		Address:            in.Address,
		BackgroundImageURL: in.BackgroundImageURL,
		SecondaryImages:    in.SecondaryImages,
		TargetDate:         in.TargetDate.UTC(),
		EndsAt:             in.EndsAt.UTC(),
		LumaLink:           in.LumaLink,
		CreatedBy:          createdBy,
		CreatedAt:          r.db.now().UTC(),
	})
	r.db.events[e.ID] = e
	out := cloneEvent(e)
	return &out, nil
}

func (r *Events) collect(keep func(model.Event) bool) []model.Event {
	var out []model.Event
	for _, e := range r.db.events {
		if keep(e) {
			out = append(out, cloneEvent(e))
		}
	}
	return out
}

func (r *Events) List(_ context.Context) ([]model.Event, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if err := r.db.check("list events"); err != nil {
		return nil, err
	}
	out := r.collect(func(model.Event) bool { return true })
	sort.SliceStable(out, func(i, j int) bool { return out[i].TargetDate.Before(out[j].TargetDate) })
	return out, nil
}

func (r *Events) ListByCreator(_ context.Context, userID string) ([]model.Event, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if err := r.db.check("list events"); err != nil {
		return nil, err
	}
	out := r.collect(func(e model.Event) bool { return e.CreatedBy == userID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].TargetDate.Before(out[j].TargetDate) })
	return out, nil
}

func (r *Events) GetByID(_ context.Context, id string) (*model.Event, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if err := r.db.check("get event"); err != nil {
		return nil, err
	}
	e, ok := r.db.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneEvent(e)
	return &out, nil
}

func (r *Events) Update(_ context.Context, id string, in model.EventInput) (*model.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.check("update event"); err != nil {
		return nil, err
	}
	e, ok := r.db.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	e.Title = in.Title
	e.Creator = in.Creator
	e.Description = in.Description
	e.Address = in.Address
	e.BackgroundImageURL = in.BackgroundImageURL
	e.SecondaryImages = in.SecondaryImages
	e.TargetDate = in.TargetDate.UTC()
	e.EndsAt = in.EndsAt.UTC()
	e.LumaLink = in.LumaLink
	e = cloneEvent(e)
	r.db.events[id] = e
	out := cloneEvent(e)
	return &out, nil
}

// Delete removes the event and, like the SQL foreign key, its registrations.
func (r *Events) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.check("delete event"); err != nil {
		return err
	}
	if _, ok := r.db.events[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.events, id)
	for key, reg := range r.db.registrations {
		if reg.EventID == id {
			delete(r.db.registrations, key)
		}
	}
	return nil
}

// ─── Registrations ────────────────────────────────────────────────────────────

// Registrations is the in-memory event_registrations collection.
type Registrations struct{ db *DB }

func (r *Registrations) Find(_ context.Context, eventID, userID string) (*model.Registration, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if err := r.db.check("find registration"); err != nil {
		return nil, err
	}
	for _, reg := range r.db.registrations {
		if reg.EventID == eventID && reg.UserID == userID {
			out := reg
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Registrations) Put(_ context.Context, reg model.Registration) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.check("put registration"); err != nil {
		return err
	}
	if _, ok := r.db.events[reg.EventID]; !ok {
		return fmt.Errorf("put registration: %w: unknown event %q", repository.ErrStoreUnavailable, reg.EventID)
	}
	r.db.registrations[reg.ID] = reg
	return nil
}

func (r *Registrations) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.check("delete registration"); err != nil {
		return err
	}
	delete(r.db.registrations, id)
	return nil
}

func (r *Registrations) list(op string, keep func(model.Registration) bool) ([]model.Registration, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if err := r.db.check(op); err != nil {
		return nil, err
	}
	var out []model.Registration
	for _, reg := range r.db.registrations {
		if keep(reg) {
			out = append(out, reg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RegisteredAt.After(out[j].RegisteredAt) })
	return out, nil
}

func (r *Registrations) ListByEvent(_ context.Context, eventID string) ([]model.Registration, error) {
	return r.list("list registrations", func(reg model.Registration) bool { return reg.EventID == eventID })
}

func (r *Registrations) ListByUser(_ context.Context, userID string) ([]model.Registration, error) {
	return r.list("list registrations", func(reg model.Registration) bool { return reg.UserID == userID })
}

// Count returns the number of stored registrations.
func (r *Registrations) Count() int {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return len(r.db.registrations)
}
