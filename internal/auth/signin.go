package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vokorun/runclub/internal/model"
	"github.com/vokorun/runclub/internal/repository"
)

// RoleStore is the slice of the user_roles collection sign-in needs.
type RoleStore interface {
	RoleReader
	Create(ctx context.Context, rec model.RoleRecord) error
	Update(ctx context.Context, userID string, u repository.RoleUpdate) error
}

// SignInResult is the outcome of materializing a role record.
//
// Role is a best-effort value for choosing where to send the user next. It is
// never used to authorize anything: when Persisted is false the stored record
// may still disagree, and every gate resolves the stored role afresh.
type SignInResult struct {
	Role      model.Role
	Persisted bool
}

// Materializer creates and refreshes role records on explicit sign-in.
type Materializer struct {
	roles RoleStore
	allow AllowList
	now   func() time.Time
	log   *slog.Logger
}

// NewMaterializer constructs a Materializer.
func NewMaterializer(roles RoleStore, allow AllowList, log *slog.Logger) *Materializer {
	if log == nil {
		log = slog.Default()
	}
	return &Materializer{roles: roles, allow: allow, now: time.Now, log: log}
}

// SignIn reconciles the role record of a freshly signed-in identity.
//
// A new identity gets a record with role admin when its email is on the
// allow-list and user otherwise. An existing record is elevated to admin when
// the allow-list now matches, and is never demoted. Display name, photo and
// last login are refreshed from the provider; every other field is kept.
//
// Store failures do not fail sign-in: they are logged and the locally
// computed role is returned with Persisted false.
func (m *Materializer) SignIn(ctx context.Context, id model.Identity) SignInResult {
	intended := model.RoleUser
	if m.allow.Contains(id.Email) {
		intended = model.RoleAdmin
	}
	now := m.now().UTC()

	rec, err := m.roles.Get(ctx, id.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		err = m.roles.Create(ctx, model.RoleRecord{
			UserID:      id.ID,
			Role:        intended,
			Email:       id.Email,
			DisplayName: id.DisplayName,
			PhotoURL:    id.PhotoURL,
			CreatedAt:   now,
			LastLogin:   &now,
		})
		if err != nil {
			m.fail("create role record", id, err)
			return SignInResult{Role: intended}
		}
		m.log.Info("role record created", "user_id", id.ID, "role", intended)
		return SignInResult{Role: intended, Persisted: true}

	case err != nil:
		m.fail("read role record", id, err)
		return SignInResult{Role: intended}
	}

	role := rec.Role
	update := repository.RoleUpdate{LastLogin: &now}
	if intended == model.RoleAdmin && rec.Role != model.RoleAdmin {
		role = model.RoleAdmin
		update.Role = &role
	}
	if id.DisplayName != "" {
		update.DisplayName = &id.DisplayName
	}
	if id.PhotoURL != "" {
		update.PhotoURL = &id.PhotoURL
	}

	if err := m.roles.Update(ctx, id.ID, update); err != nil {
		m.fail("update role record", id, err)
		return SignInResult{Role: role}
	}
	if update.Role != nil {
		m.log.Info("role elevated", "user_id", id.ID, "from", rec.Role, "to", role)
	}
	return SignInResult{Role: role, Persisted: true}
}

func (m *Materializer) fail(op string, id model.Identity, err error) {
	m.log.Warn("sign-in continuing without persisted role",
		"op", op,
		"user_id", id.ID,
		"error", err,
	)
}
