package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/desertthunder/zylofm/internal/services"
	"github.com/desertthunder/zylofm/internal/shared"
	"github.com/desertthunder/zylofm/internal/tasks"
)

const (
	oauthStateCookie = "zylofm_oauth_state"
	oauthStateMaxAge = 600
	oauthStartPath   = "/api/auth/google"
	oauthCallback    = "/api/auth/google/callback"
)

// OAuthHandler runs the Google authorization code flow in the browser.
//
// The start route stores a random state in a short-lived cookie and redirects to Google.
// The callback checks it, exchanges the code and signs the user in. With a redirect URL the
// session token is handed to the web client in the URL fragment; otherwise it is returned as JSON.
type OAuthHandler struct {
	provider *services.GoogleProvider
	accounts *tasks.Accounts
	redirect string
	logger   *log.Logger
}

// NewOAuthHandler creates an [OAuthHandler]. A nil provider answers 501 on both routes.
func NewOAuthHandler(provider *services.GoogleProvider, accounts *tasks.Accounts, redirect string, logger *log.Logger) *OAuthHandler {
	return &OAuthHandler{provider: provider, accounts: accounts, redirect: redirect, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"GET " + oauthStartPath, "GET " + oauthCallback}
}

// ServeHTTP dispatches to the start or callback step.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		h.fail(w, r, fmt.Errorf("%w: google sign-in is not configured", shared.ErrNotImplemented))
		return
	}

	switch r.URL.Path {
	case oauthStartPath:
		h.start(w, r)
	case oauthCallback:
		h.callback(w, r)
	default:
		h.fail(w, r, shared.ErrNotFound)
	}
}

func (h *OAuthHandler) start(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     oauthStartPath,
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: oauthStartPath, MaxAge: -1, HttpOnly: true})

	cookie, err := r.Cookie(oauthStateCookie)
	state := query.Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		h.fail(w, r, fmt.Errorf("%w: invalid state parameter", shared.ErrInvalidInput))
		return
	}

	if errParam := query.Get("error"); errParam != "" {
		h.fail(w, r, fmt.Errorf("%w: authorization failed: %s - %s", shared.ErrUnauthorized, errParam, query.Get("error_description")))
		return
	}

	profile, err := h.provider.Exchange(r.Context(), query.Get("code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	session, created, err := h.accounts.SignInExternal(r.Context(), profile)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("google sign-in", "user_id", session.User.ID, "created", created)

	if h.redirect != "" {
		fragment := url.Values{"token": {session.Token}, "expires_at": {session.ExpiresAt.Format(time.RFC3339)}}
		http.Redirect(w, r, h.redirect+"#"+fragment.Encode(), http.StatusFound)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeData(w, status, session)
}

func (h *OAuthHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("oauth callback failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: RequestIDFrom(r.Context())})
}

// oauthRedirect is where the web client receives the session after Google sign-in: the
// first configured CORS origin, or none for JSON responses.
func oauthRedirect(cfg *shared.Config) string {
	for _, origin := range cfg.Server.CORSOrigins {
		if origin != "" && origin != "*" {
			return strings.TrimRight(origin, "/") + "/auth/callback"
		}
	}
	return ""
}
