package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestGoogle(t *testing.T, userinfo map[string]any) *GoogleProvider {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(userinfo)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewGoogleProvider("client", "secret", "http://localhost/callback")
	p.cfg.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.userInfoURL = srv.URL + "/userinfo"
	return p
}

func TestGoogleProvider_Exchange(t *testing.T) {
	p := newTestGoogle(t, map[string]any{
		"sub":            "1234",
		"email":          "runner@example.com",
		"email_verified": true,
		"name":           "Runner",
		"picture":        "https://img/runner.png",
	})

	id, err := p.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "google:1234", id.ID)
	assert.Equal(t, "runner@example.com", id.Email)
	assert.Equal(t, "Runner", id.DisplayName)
	assert.Equal(t, "https://img/runner.png", id.PhotoURL)
}

func TestGoogleProvider_ExchangeDropsUnverifiedEmail(t *testing.T) {
	p := newTestGoogle(t, map[string]any{
		"sub":            "5678",
		"email":          "admin@voko.run",
		"email_verified": false,
		"name":           "Impostor",
	})

	id, err := p.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "google:5678", id.ID)
	assert.Empty(t, id.Email)
	assert.False(t, ParseAllowList("admin@voko.run").Contains(id.Email))
}

func TestGoogleProvider_ExchangeWithoutSubject(t *testing.T) {
	p := newTestGoogle(t, map[string]any{"email": "runner@example.com"})

	_, err := p.Exchange(context.Background(), "the-code")
	assert.ErrorIs(t, err, ErrNoSubject)
}

func TestGoogleProvider_AuthCodeURL(t *testing.T) {
	p := NewGoogleProvider("client", "secret", "http://localhost/callback")

	u, err := url.Parse(p.AuthCodeURL("state-xyz"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "select_account", q.Get("prompt"))
}
