package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/vokorun/runclub/internal/model"
)

// Provider is the federated identity provider behind sign-in.
type Provider interface {
	// AuthCodeURL returns the consent page URL carrying state.
	AuthCodeURL(state string) string
	// Exchange trades an authorization code for the signed-in identity.
	Exchange(ctx context.Context, code string) (model.Identity, error)
}

// ErrNoSubject is returned when the provider's user info has no subject.
var ErrNoSubject = errors.New("identity provider returned no subject")

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProvider signs users in with Google OpenID Connect.
type GoogleProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider constructs a GoogleProvider.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

type googleUserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (model.Identity, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return model.Identity{}, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return model.Identity{}, fmt.Errorf("build userinfo request: %w", err)
	}
	resp, err := p.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return model.Identity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.Identity{}, fmt.Errorf("fetch userinfo: status %d: %s", resp.StatusCode, body)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return model.Identity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Subject == "" {
		return model.Identity{}, ErrNoSubject
	}

	// An unverified address must never match the admin allow-list.
	email := info.Email
	if !info.EmailVerified {
		email = ""
	}

	return model.Identity{
		ID:          "google:" + info.Subject,
		DisplayName: info.Name,
		Email:       email,
		PhotoURL:    info.Picture,
	}, nil
}
