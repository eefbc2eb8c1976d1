// Package auth resolves signed-in identities to roles and materializes role
// records on explicit sign-in.
package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vokorun/runclub/internal/model"
	"github.com/vokorun/runclub/internal/repository"
)

// RoleReader looks up role records.
type RoleReader interface {
	Get(ctx context.Context, userID string) (*model.RoleRecord, error)
}

// Snapshot is the read-only view of who is signed in and with what role.
// Role is empty when nobody is signed in.
type Snapshot struct {
	Identity *model.Identity `json:"identity"`
	Role     model.Role      `json:"role"`
	Loading  bool            `json:"loading"`
}

// SignedIn reports whether the snapshot carries an identity.
func (s Snapshot) SignedIn() bool {
	return s.Identity != nil
}

// IsAdmin reports whether the snapshot's persisted role is admin.
func (s Snapshot) IsAdmin() bool {
	return s.Identity != nil && s.Role == model.RoleAdmin
}

// Resolver turns session identities into snapshots. It only reads; role
// records are written by the sign-in flow.
type Resolver struct {
	roles RoleReader
	log   *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(roles RoleReader, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{roles: roles, log: log}
}

// Resolve returns the snapshot for id. A nil id is the signed-out snapshot.
//
// A failed lookup yields role user instead of an error. Admin-only actions
// therefore fail closed while signed-in browsing keeps working.
func (r *Resolver) Resolve(ctx context.Context, id *model.Identity) Snapshot {
	if id == nil {
		return Snapshot{}
	}

	rec, err := r.roles.Get(ctx, id.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return Snapshot{Identity: id, Role: model.RoleUser}
	case err != nil:
		if ctx.Err() == nil {
			r.log.Warn("role lookup failed, defaulting to user",
				"user_id", id.ID,
				"error", err,
			)
		}
		return Snapshot{Identity: id, Role: model.RoleUser}
	case !rec.Role.Valid():
		r.log.Warn("stored role is not recognised, defaulting to user",
			"user_id", id.ID,
			"role", rec.Role,
		)
		return Snapshot{Identity: id, Role: model.RoleUser}
	default:
		return Snapshot{Identity: id, Role: rec.Role}
	}
}

// Watch follows a stream of session changes (nil meaning signed out) and
// emits a snapshot for each. The first emitted value is a loading snapshot.
//
// At most one lookup is in flight. A new change cancels the pending lookup,
// and a result for a superseded change is dropped, never emitted. The output
// closes when ctx is done, or once changes is closed and the last lookup has
// been delivered.
func (r *Resolver) Watch(ctx context.Context, changes <-chan *model.Identity) <-chan Snapshot {
	out := make(chan Snapshot)

	go func() {
		defer close(out)

		type result struct {
			gen  uint64
			snap Snapshot
		}
		results := make(chan result)

		var (
			gen     uint64
			pending bool
			cancel  = context.CancelFunc(func() {})
		)
		defer func() { cancel() }()

		emit := func(s Snapshot) bool {
			select {
			case out <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(Snapshot{Loading: true}) {
			return
		}

		for changes != nil || pending {
			select {
			case <-ctx.Done():
				return

			case id, ok := <-changes:
				if !ok {
					changes = nil
					continue
				}
				cancel()
				gen++
				if id == nil {
					pending = false
					cancel = func() {}
					if !emit(Snapshot{}) {
						return
					}
					continue
				}

				var lookupCtx context.Context
				lookupCtx, cancel = context.WithCancel(ctx)
				pending = true
				go func(gen uint64, id *model.Identity) {
					snap := r.Resolve(lookupCtx, id)
					select {
					case results <- result{gen: gen, snap: snap}:
					case <-lookupCtx.Done():
					}
				}(gen, id)

			case res := <-results:
				if ctx.Err() != nil {
					return
				}
				if res.gen != gen {
					continue
				}
				pending = false
				if !emit(res.snap) {
					return
				}
			}
		}
	}()

	return out
}
