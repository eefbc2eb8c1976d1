package handler

import (
	"crypto/rand"
	"log/slog"
	"net/http"

	"github.com/vokorun/runclub/internal/auth"
	"github.com/vokorun/runclub/internal/model"
)

// AuthHandler runs the federated sign-in flow and exposes the session.
type AuthHandler struct {
	sessions *auth.Sessions
	signIn   *auth.Materializer
	provider auth.Provider // nil when sign-in is not configured
	log      *slog.Logger
}

// NewAuthHandler constructs an AuthHandler. provider may be nil.
func NewAuthHandler(sessions *auth.Sessions, signIn *auth.Materializer, provider auth.Provider, log *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, signIn: signIn, provider: provider, log: log}
}

func (h *AuthHandler) unavailable(w http.ResponseWriter) {
	writeError(w, http.StatusServiceUnavailable, model.ErrorResponse{
		Error:  "sign-in unavailable",
		Action: "signIn",
		Notice: "Google sign-in is not configured",
	})
}

// Session handles GET /api/session
// Returns who is signed in and their resolved role.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SnapshotFrom(r.Context()))
}

// Login handles GET /auth/google/login
// Remembers a fresh state value and redirects to the provider's consent page.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		h.unavailable(w)
		return
	}
	state := rand.Text()
	h.sessions.PutState(r.Context(), state)
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// Callback handles GET /auth/google/callback
// Completes sign-in, materializes the role record, and redirects admins to
// the console and everyone else home.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		h.unavailable(w)
		return
	}
	ctx := r.Context()
	q := r.URL.Query()

	want := h.sessions.PopState(ctx)
	if want == "" || q.Get("state") != want {
		badRequest(w, "signIn", "Sign-in expired. Please try again.")
		return
	}
	if e := q.Get("error"); e != "" {
		h.log.Info("sign-in cancelled at provider", "reason", e)
		http.Redirect(w, r, redirectSignIn, http.StatusFound)
		return
	}
	code := q.Get("code")
	if code == "" {
		badRequest(w, "signIn", "Missing authorization code")
		return
	}

	identity, err := h.provider.Exchange(ctx, code)
	if err != nil {
		h.log.Warn("sign-in exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, model.ErrorResponse{
			Error:  "sign-in failed",
			Action: "signIn",
			Notice: "Failed to sign in with Google. Please try again.",
		})
		return
	}

	res := h.signIn.SignIn(ctx, identity)
	if err := h.sessions.SignIn(ctx, identity); err != nil {
		respondError(w, r, h.log, "signIn", err)
		return
	}
	h.log.Info("user signed in", "user_id", identity.ID, "role", res.Role, "persisted", res.Persisted)

	// Navigation only; every request re-resolves the persisted role.
	target := redirectHome
	if res.Role == model.RoleAdmin {
		target = "/admin"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(r.Context()); err != nil {
		respondError(w, r, h.log, "signOut", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": redirectHome})
}
