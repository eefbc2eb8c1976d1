package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vokorun/runclub/internal/model"
	"github.com/vokorun/runclub/internal/repository"
	"github.com/vokorun/runclub/internal/repository/memory"
)

var testNow = time.Date(2026, 4, 18, 6, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	db     *memory.DB
	regs   *RegistrationService
	events *EventService
	clock  *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.New()
	clock := testNow
	now := func() time.Time { return clock }

	regs := NewRegistrationService(db.Events(), db.Registrations(), quietLogger())
	regs.now = now
	events := NewEventService(db.Events(), regs, db.Registrations(), db.Roles(), time.UTC, quietLogger())
	events.now = now

	return &fixture{db: db, regs: regs, events: events, clock: &clock}
}

func (f *fixture) event(t *testing.T, owner string, start time.Time) *model.Event {
	t.Helper()
	e, err := f.db.Events().Create(context.Background(), owner, model.EventInput{
		Title:      "Harbour 10k",
		TargetDate: start,
		EndsAt:     start.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	return e
}

func TestToggle_AnonymousNeedsSignIn(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, "owner", testNow.Add(48*time.Hour))

	_, err := f.regs.Toggle(context.Background(), nil, e.ID)
	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.Equal(t, 0, f.db.Registrations().Count())
}

func TestToggle_EndedEventIsClosed(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, "owner", testNow.Add(-2*time.Hour))
	runner := &model.Identity{ID: "runner"}

	_, err := f.regs.Toggle(context.Background(), runner, e.ID)
	assert.ErrorIs(t, err, ErrEventClosed)
	assert.Equal(t, 0, f.db.Registrations().Count())
}

func TestToggle_EndedEventKeepsExistingRegistration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.event(t, "owner", testNow.Add(30*time.Minute))
	runner := &model.Identity{ID: "runner"}

	_, err := f.regs.Toggle(ctx, runner, e.ID)
	require.NoError(t, err)

	*f.clock = testNow.Add(3 * time.Hour)
	_, err = f.regs.Toggle(ctx, runner, e.ID)
	assert.ErrorIs(t, err, ErrEventClosed)
	assert.Equal(t, 1, f.db.Registrations().Count(), "a closed event neither creates nor deletes")

	state, err := f.regs.State(ctx, runner, e)
	require.NoError(t, err)
	assert.Equal(t, Blocked, state)
}

func TestToggle_LiveEventAcceptsRegistration(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, "owner", testNow.Add(-30*time.Minute))

	res, err := f.regs.Toggle(context.Background(), &model.Identity{ID: "runner"}, e.ID)
	require.NoError(t, err)
	assert.Equal(t, Registered, res.State)
}

func TestToggle_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.event(t, "owner", testNow.Add(24*time.Hour))
	runner := &model.Identity{ID: "runner"}

	first, err := f.regs.Toggle(ctx, runner, e.ID)
	require.NoError(t, err)
	assert.Equal(t, Registered, first.State)
	require.NotNil(t, first.Registration)
	assert.Equal(t, model.RegistrationID(e.ID, "runner"), first.Registration.ID)
	assert.Equal(t, testNow, first.Registration.RegisteredAt)

	second, err := f.regs.Toggle(ctx, runner, e.ID)
	require.NoError(t, err)
	assert.Equal(t, Unregistered, second.State)
	_, err = f.db.Registrations().Find(ctx, e.ID, "runner")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	*f.clock = testNow.Add(5 * time.Minute)
	third, err := f.regs.Toggle(ctx, runner, e.ID)
	require.NoError(t, err)
	assert.Equal(t, Registered, third.State)
	assert.Equal(t, testNow.Add(5*time.Minute), third.Registration.RegisteredAt, "re-registering records a new time")
	assert.Equal(t, 1, f.db.Registrations().Count())
}

func TestToggle_UnknownEvent(t *testing.T) {
	f := newFixture(t)

	_, err := f.regs.Toggle(context.Background(), &model.Identity{ID: "runner"}, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestToggle_StoreFailureLeavesNothingApplied(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, "owner", testNow.Add(24*time.Hour))
	f.db.SetFailure(errors.New("network down"))

	_, err := f.regs.Toggle(context.Background(), &model.Identity{ID: "runner"}, e.ID)
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)

	f.db.SetFailure(nil)
	assert.Equal(t, 0, f.db.Registrations().Count())
}

func TestState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.event(t, "owner", testNow.Add(24*time.Hour))
	runner := &model.Identity{ID: "runner"}

	state, err := f.regs.State(ctx, nil, e)
	require.NoError(t, err)
	assert.Equal(t, Unregistered, state)

	_, err = f.regs.Toggle(ctx, runner, e.ID)
	require.NoError(t, err)
	state, err = f.regs.State(ctx, runner, e)
	require.NoError(t, err)
	assert.Equal(t, Registered, state)
}
