package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/vokorun/runclub/internal/model"
)

// Session keys. The identity is stored as plain strings so the session codec
// needs no type registration.
const (
	sessionKeyUserID      = "user_id"
	sessionKeyEmail       = "email"
	sessionKeyDisplayName = "display_name"
	sessionKeyPhotoURL    = "photo_url"
	sessionKeyOAuthState  = "oauth_state"
)

// NewSessionManager returns a cookie session manager. A nil store keeps
// sessions in process memory.
func NewSessionManager(store scs.Store, lifetime time.Duration, secure bool) *scs.SessionManager {
	sm := scs.New()
	if store != nil {
		sm.Store = store
	}
	sm.Lifetime = lifetime
	sm.Cookie.Name = "runclub_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = secure
	return sm
}

// Sessions stores the signed-in identity in the session. The role is never
// stored: it is resolved from the role record on every request.
type Sessions struct {
	sm *scs.SessionManager
}

// NewSessions constructs Sessions over sm.
func NewSessions(sm *scs.SessionManager) *Sessions {
	return &Sessions{sm: sm}
}

// Manager exposes the session manager for mounting its middleware.
func (s *Sessions) Manager() *scs.SessionManager {
	return s.sm
}

// Identity returns the identity in the session, or nil when signed out.
func (s *Sessions) Identity(ctx context.Context) *model.Identity {
	id := s.sm.GetString(ctx, sessionKeyUserID)
	if id == "" {
		return nil
	}
	return &model.Identity{
		ID:          id,
		Email:       s.sm.GetString(ctx, sessionKeyEmail),
		DisplayName: s.sm.GetString(ctx, sessionKeyDisplayName),
		PhotoURL:    s.sm.GetString(ctx, sessionKeyPhotoURL),
	}
}

// SignIn renews the session token and stores id in it.
func (s *Sessions) SignIn(ctx context.Context, id model.Identity) error {
	if err := s.sm.RenewToken(ctx); err != nil {
		return err
	}
	s.sm.Put(ctx, sessionKeyUserID, id.ID)
	s.sm.Put(ctx, sessionKeyEmail, id.Email)
	s.sm.Put(ctx, sessionKeyDisplayName, id.DisplayName)
	s.sm.Put(ctx, sessionKeyPhotoURL, id.PhotoURL)
	return nil
}

// SignOut destroys the session.
func (s *Sessions) SignOut(ctx context.Context) error {
	return s.sm.Destroy(ctx)
}

// PutState remembers the OAuth state issued for this browser.
func (s *Sessions) PutState(ctx context.Context, state string) {
	s.sm.Put(ctx, sessionKeyOAuthState, state)
}

// PopState returns and forgets the remembered OAuth state.
func (s *Sessions) PopState(ctx context.Context) string {
	return s.sm.PopString(ctx, sessionKeyOAuthState)
}
