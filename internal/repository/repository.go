// Package repository implements the document collections of the run club
// (user_roles, events, event_registrations) on PostgreSQL.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vokorun/runclub/internal/model"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// ErrStoreUnavailable wraps every failure of the underlying store, so callers
// can tell "absent" apart from "could not ask".
var ErrStoreUnavailable = errors.New("store unavailable")

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// RoleUpdate is a merge-update of a role record: nil fields are left as stored.
type RoleUpdate struct {
	Role        *model.Role
	DisplayName *string
	PhotoURL    *string
	LastLogin   *time.Time
}

// ─── Role records ─────────────────────────────────────────────────────────────

// RoleRepository handles persistence for user_roles.
type RoleRepository struct {
	db *pgxpool.Pool
}

// NewRoleRepository constructs a RoleRepository.
func NewRoleRepository(db *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{db: db}
}

const roleColumns = `user_id, role, email, display_name, photo_url, created_at, last_login`

func scanRole(row pgx.Row) (*model.RoleRecord, error) {
	var (
		rec  model.RoleRecord
		role string
	)
	err := row.Scan(&rec.UserID, &role, &rec.Email, &rec.DisplayName, &rec.PhotoURL, &rec.CreatedAt, &rec.LastLogin)
	if err != nil {
		return nil, err
	}
	rec.Role = model.Role(role)
	return &rec, nil
}

// Get returns the role record for userID or ErrNotFound.
func (r *RoleRepository) Get(ctx context.Context, userID string) (*model.RoleRecord, error) {
	rec, err := scanRole(r.db.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM user_roles WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable("get role", err)
	}
	return rec, nil
}

// GetMany returns the role records that exist for ids, keyed by user id.
func (r *RoleRepository) GetMany(ctx context.Context, ids []string) (map[string]model.RoleRecord, error) {
	out := make(map[string]model.RoleRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+roleColumns+` FROM user_roles WHERE user_id = ANY($1)`, ids)
	if err != nil {
		return nil, unavailable("list roles", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRole(rows)
		if err != nil {
			return nil, unavailable("scan role", err)
		}
		out[rec.UserID] = *rec
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list roles", err)
	}
	return out, nil
}

// Create inserts a new role record. The primary key keeps it to one record
// per identity.
func (r *RoleRepository) Create(ctx context.Context, rec model.RoleRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO user_roles (`+roleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.UserID, string(rec.Role), rec.Email, rec.DisplayName, rec.PhotoURL, rec.CreatedAt, rec.LastLogin,
	)
	if err != nil {
		return unavailable("insert role", err)
	}
	return nil
}

// Update merges the non-nil fields of u into the stored record.
func (r *RoleRepository) Update(ctx context.Context, userID string, u RoleUpdate) error {
	var role *string
	if u.Role != nil {
		s := string(*u.Role)
		role = &s
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE user_roles SET
		   role         = COALESCE($2, role),
		   display_name = COALESCE($3, display_name),
		   photo_url    = COALESCE($4, photo_url),
		   last_login   = COALESCE($5, last_login)
		 WHERE user_id = $1`,
		userID, role, u.DisplayName, u.PhotoURL, u.LastLogin,
	)
	if err != nil {
		return unavailable("update role", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Events ───────────────────────────────────────────────────────────────────

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, title, creator, description, address, background_image_url,
	secondary_images, target_date, ends_at, luma_link, created_by, created_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.Creator, &e.Description, &e.Address, &e.BackgroundImageURL,
		&e.SecondaryImages, &e.TargetDate, &e.EndsAt, &e.LumaLink, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if e.SecondaryImages == nil {
		e.SecondaryImages = []string{}
	}
	return &e, nil
}

func (r *EventRepository) list(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list events", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, unavailable("scan event", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list events", err)
	}
	return events, nil
}

// Create inserts a new event owned by createdBy and returns it with a generated UUID.
func (r *EventRepository) Create(ctx context.Context, createdBy string, in model.EventInput) (*model.Event, error) {
	event := &model.Event{
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
		CreatedAt:          time.Now().UTC(),
	}
	if event.SecondaryImages == nil {
		event.SecondaryImages = []string{}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		event.ID, event.Title, event.Creator, event.Description, event.Address, event.BackgroundImageURL,
		event.SecondaryImages, event.TargetDate, event.EndsAt, event.LumaLink, event.CreatedBy, event.CreatedAt,
	)
	if err != nil {
		return nil, unavailable("insert event", err)
	}
	return event, nil
}

// List returns all events ordered by start time ascending.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM events ORDER BY target_date ASC`)
}

// ListByCreator returns the events created by userID, soonest first.
func (r *EventRepository) ListByCreator(ctx context.Context, userID string) ([]model.Event, error) {
	return r.list(ctx,
		`SELECT `+eventColumns+` FROM events WHERE created_by = $1 ORDER BY target_date ASC`, userID)
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable("get event", err)
	}
	return e, nil
}

// Update overwrites the editable fields of an event and returns the result.
// Ownership and creation metadata are never touched.
func (r *EventRepository) Update(ctx context.Context, id string, in model.EventInput) (*model.Event, error) {
	images := in.SecondaryImages
	if images == nil {
		images = []string{}
	}
	e, err := scanEvent(r.db.QueryRow(ctx,
		`UPDATE events SET
		   title = $2, creator = $3, description = $4, address = $5,
		   background_image_url = $6, secondary_images = $7,
		   target_date = $8, ends_at = $9, luma_link = $10
		 WHERE id = $1
		 RETURNING `+eventColumns,
		id, in.Title, in.Creator, in.Description, in.Address, in.BackgroundImageURL,
		images, in.TargetDate.UTC(), in.EndsAt.UTC(), in.LumaLink,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable("update event", err)
	}
	return e, nil
}

// Delete removes an event. Its registrations go with it (ON DELETE CASCADE).
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return unavailable("delete event", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Registrations ────────────────────────────────────────────────────────────

// RegistrationRepository handles persistence for event_registrations.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func (r *RegistrationRepository) list(ctx context.Context, query string, arg string) ([]model.Registration, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, unavailable("list registrations", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		var reg model.Registration
		if err := rows.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.RegisteredAt); err != nil {
			return nil, unavailable("scan registration", err)
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list registrations", err)
	}
	return regs, nil
}

// Find returns the registration of userID for eventID or ErrNotFound.
func (r *RegistrationRepository) Find(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	var reg model.Registration
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, event_id, registered_at
		 FROM event_registrations
		 WHERE event_id = $1 AND user_id = $2
		 LIMIT 1`,
		eventID, userID,
	).Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable("find registration", err)
	}
	return &reg, nil
}

// Put creates the registration, or overwrites the one with the same ID.
// Because the ID is derived from (event, user), two concurrent creates for
// the same pair converge on a single row.
func (r *RegistrationRepository) Put(ctx context.Context, reg model.Registration) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO event_registrations (id, user_id, event_id, registered_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET registered_at = EXCLUDED.registered_at`,
		reg.ID, reg.UserID, reg.EventID, reg.RegisteredAt,
	)
	if err != nil {
		return unavailable("put registration", err)
	}
	return nil
}

// Delete removes a registration by ID. Deleting an absent one is not an error.
func (r *RegistrationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM event_registrations WHERE id = $1`, id); err != nil {
		return unavailable("delete registration", err)
	}
	return nil
}

// ListByEvent returns all registrations for an event, most recent first.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	return r.list(ctx,
		`SELECT id, user_id, event_id, registered_at
		 FROM event_registrations
		 WHERE event_id = $1
		 ORDER BY registered_at DESC`, eventID)
}

// ListByUser returns all registrations held by a user, most recent first.
func (r *RegistrationRepository) ListByUser(ctx context.Context, userID string) ([]model.Registration, error) {
	return r.list(ctx,
		`SELECT id, user_id, event_id, registered_at
		 FROM event_registrations
		 WHERE user_id = $1
		 ORDER BY registered_at DESC`, userID)
}
