package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vokorun/runclub/internal/model"
	"github.com/vokorun/runclub/internal/repository"
)

func TestRoles_MergeUpdate(t *testing.T) {
	ctx := context.Background()
	roles := New().Roles()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, roles.Create(ctx, model.RoleRecord{
		UserID: "u1", Role: model.RoleUser, Email: "ana@example.com", DisplayName: "Ana", CreatedAt: created,
	}))

	name := "Ana B."
	login := created.Add(time.Hour)
	require.NoError(t, roles.Update(ctx, "u1", repository.RoleUpdate{DisplayName: &name, LastLogin: &login}))

	rec, err := roles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, rec.Role)
	assert.Equal(t, "ana@example.com", rec.Email)
	assert.Equal(t, "Ana B.", rec.DisplayName)
	assert.Equal(t, created, rec.CreatedAt)
	require.NotNil(t, rec.LastLogin)
	assert.Equal(t, login, *rec.LastLogin)

	assert.ErrorIs(t, roles.Update(ctx, "nobody", repository.RoleUpdate{}), repository.ErrNotFound)
	assert.Error(t, roles.Create(ctx, model.RoleRecord{UserID: "u1"}), "second record for one identity")
}

func TestEvents_DeleteCascadesRegistrations(t *testing.T) {
	ctx := context.Background()
	db := New()

	e, err := db.Events().Create(ctx, "owner", model.EventInput{Title: "Sunrise 5k", TargetDate: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	reg := model.Registration{ID: model.RegistrationID(e.ID, "u1"), UserID: "u1", EventID: e.ID, RegisteredAt: time.Now()}
	require.NoError(t, db.Registrations().Put(ctx, reg))
	require.Equal(t, 1, db.Registrations().Count())

	require.NoError(t, db.Events().Delete(ctx, e.ID))
	assert.Equal(t, 0, db.Registrations().Count())
	assert.ErrorIs(t, db.Events().Delete(ctx, e.ID), repository.ErrNotFound)
}

func TestRegistrations_PutIsIdempotentPerPair(t *testing.T) {
	ctx := context.Background()
	db := New()
	e, err := db.Events().Create(ctx, "owner", model.EventInput{Title: "Track night"})
	require.NoError(t, err)

	id := model.RegistrationID(e.ID, "u1")
	require.NoError(t, db.Registrations().Put(ctx, model.Registration{ID: id, UserID: "u1", EventID: e.ID}))
	require.NoError(t, db.Registrations().Put(ctx, model.Registration{ID: id, UserID: "u1", EventID: e.ID}))
	assert.Equal(t, 1, db.Registrations().Count())
}

func TestEvents_ListOrderedByTargetDate(t *testing.T) {
	ctx := context.Background()
	events := New().Events()
	now := time.Now()

	_, err := events.Create(ctx, "a", model.EventInput{Title: "later", TargetDate: now.Add(48 * time.Hour)})
	require.NoError(t, err)
	_, err = events.Create(ctx, "a", model.EventInput{Title: "sooner", TargetDate: now.Add(24 * time.Hour)})
	require.NoError(t, err)

	list, err := events.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "sooner", list[0].Title)
	assert.Equal(t, "later", list[1].Title)
}

func TestEvents_ListByCreatorOrderedByTargetDate(t *testing.T) {
	ctx := context.Background()
	events := New().Events()
	now := time.Now()

	for _, in := range []model.EventInput{
		{Title: "created first, runs first", TargetDate: now.Add(24 * time.Hour)},
		{Title: "someone else's", TargetDate: now.Add(time.Hour)},
		{Title: "created last, runs last", TargetDate: now.Add(72 * time.Hour)},
	} {
		owner := "coach"
		if in.Title == "someone else's" {
			owner = "other"
		}
		_, err := events.Create(ctx, owner, in)
		require.NoError(t, err)
	}

	list, err := events.ListByCreator(ctx, "coach")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "created first, runs first", list[0].Title)
	assert.Equal(t, "created last, runs last", list[1].Title)
}

func TestSetFailure(t *testing.T) {
	ctx := context.Background()
	db := New()
	db.SetFailure(errors.New("connection reset"))

	_, err := db.Events().List(ctx)
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
	_, err = db.Roles().Get(ctx, "u1")
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)

	db.SetFailure(nil)
	_, err = db.Events().List(ctx)
	assert.NoError(t, err)
}
