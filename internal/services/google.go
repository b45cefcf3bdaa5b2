// Google OAuth 2.0 sign-in
//
// Profile fields based on https://developers.google.com/identity/openid-connect/openid-connect#obtainuserinfo
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/desertthunder/zylofm/internal/shared"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// ExternalProfile is an identity asserted by an OAuth provider.
type ExternalProfile struct {
	Provider string
	ID       string
	Email    string
	Name     string
	Picture  string
}

// GoogleUserInfo is the OpenID Connect userinfo response.
type GoogleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleProvider runs the server-side authorization code flow against Google.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// GoogleOption customizes a [GoogleProvider].
type GoogleOption func(*GoogleProvider)

// WithGoogleEndpoint overrides the OAuth and userinfo endpoints.
func WithGoogleEndpoint(endpoint oauth2.Endpoint, userInfoURL string) GoogleOption {
	return func(g *GoogleProvider) {
		g.config.Endpoint = endpoint
		g.userInfoURL = userInfoURL
	}
}

// WithGoogleHTTPClient sets the client used for token exchange and profile requests.
func WithGoogleHTTPClient(client *http.Client) GoogleOption {
	return func(g *GoogleProvider) { g.httpClient = client }
}

// NewGoogleProvider creates a provider with the given OAuth2 client credentials.
func NewGoogleProvider(cfg shared.GoogleConfig, opts ...GoogleOption) (*GoogleProvider, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing google client_id", shared.ErrMissingConfig)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing google client_secret", shared.ErrMissingConfig)
	}

	g := &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		},
		userInfoURL: googleUserInfoURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *GoogleProvider) Name() string {
	return "google"
}

// AuthCodeURL returns the consent page URL carrying state.
func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades an authorization code for a token and fetches the signed-in user's profile.
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (*ExternalProfile, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", shared.ErrInvalidInput)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrUnauthorized, err)
	}

	info, err := g.userInfo(ctx, g.config.Client(ctx, token))
	if err != nil {
		return nil, err
	}
	if info.Sub == "" || info.Email == "" {
		return nil, fmt.Errorf("%w: google profile has no subject or email", shared.ErrAPIRequest)
	}
	if !info.EmailVerified {
		return nil, fmt.Errorf("%w: google email is not verified", shared.ErrForbidden)
	}

	return &ExternalProfile{
		Provider: "google",
		ID:       info.Sub,
		Email:    shared.NormalizeEmail(info.Email),
		Name:     info.Name,
		Picture:  info.Picture,
	}, nil
}

func (g *GoogleProvider) userInfo(ctx context.Context, client *http.Client) (*GoogleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: google userinfo status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &info, nil
}
