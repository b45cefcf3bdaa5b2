package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/zylofm/internal/auth"
	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/repositories"
	"github.com/desertthunder/zylofm/internal/services"
	"github.com/desertthunder/zylofm/internal/shared"
)

// Session is a signed-in user with their bearer token.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// ProfileChanges holds the account fields a user may edit. Nil fields are left unchanged.
//
// Changing the password of an account that has one requires CurrentPassword.
type ProfileChanges struct {
	Name            *string
	Image           *string
	Bio             *string
	Password        *string
	CurrentPassword string
}

// Accounts registers, signs in and authenticates users.
type Accounts struct {
	users  *repositories.UserRepository
	tokens *auth.TokenIssuer
	logger *log.Logger
}

// NewAccounts creates [Accounts].
func NewAccounts(users *repositories.UserRepository, tokens *auth.TokenIssuer, logger *log.Logger) *Accounts {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Accounts{users: users, tokens: tokens, logger: logger}
}

// CreateUser stores a credentials account with the given role.
func (a *Accounts) CreateUser(ctx context.Context, email, name, password string, role models.Role) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}

	user := models.NewUser(email, name)
	user.Role = role
	if err := user.Validate(); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := a.users.Create(user); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return nil, fmt.Errorf("%w: email %s is already registered", shared.ErrConflict, user.Email)
		}
		return nil, err
	}

	a.logger.Info("user created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Register creates a listener account and signs it in.
func (a *Accounts) Register(ctx context.Context, email, name, password string) (*Session, error) {
	user, err := a.CreateUser(ctx, email, name, password, models.RoleListener)
	if err != nil {
		return nil, err
	}
	return a.issue(user)
}

// Login verifies credentials. Unknown emails and wrong passwords both fail with
// [shared.ErrInvalidCredentials].
func (a *Accounts) Login(ctx context.Context, email, password string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	user, err := a.users.GetByEmail(email)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		a.logger.Warn("failed login", "user_id", user.ID)
		return nil, err
	}
	return a.issue(user)
}

// SignInExternal finds or creates the account for a verified third-party profile.
//
// An existing account with the same email is linked to the provider identity. The returned
// bool reports whether a new account was created.
func (a *Accounts) SignInExternal(ctx context.Context, profile *services.ExternalProfile) (*Session, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	user, err := a.users.GetByProvider(profile.Provider, profile.ID)
	if err == nil {
		return a.session(user, false)
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, err
	}

	user, err = a.users.GetByEmail(profile.Email)
	switch {
	case err == nil:
		if user.ProviderID != "" && user.ProviderID != profile.ID {
			return nil, false, fmt.Errorf("%w: %s is linked to another %s account", shared.ErrConflict, user.Email, profile.Provider)
		}
		user.Provider, user.ProviderID = profile.Provider, profile.ID
		if user.Image == "" {
			user.Image = profile.Picture
		}
		if err := a.users.Update(user); err != nil {
			return nil, false, err
		}
		a.logger.Info("account linked", "user_id", user.ID, "provider", profile.Provider)
		return a.session(user, false)
	case !errors.Is(err, shared.ErrNotFound):
		return nil, false, err
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name, _, _ = strings.Cut(profile.Email, "@")
	}
	user = models.NewUser(profile.Email, name)
	user.Provider, user.ProviderID, user.Image = profile.Provider, profile.ID, profile.Picture
	if err := a.users.Create(user); err != nil {
		return nil, false, err
	}
	a.logger.Info("user created", "user_id", user.ID, "provider", profile.Provider)
	return a.session(user, true)
}

// Authenticate resolves a bearer token to its current user, so role changes and deletions
// take effect before the token expires.
func (a *Accounts) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claims, err := a.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := a.users.Get(claims.UserID())
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: account no longer exists", shared.ErrUnauthorized)
	}
	return user, err
}

// UpdateProfile applies a user's edits to their own account.
func (a *Accounts) UpdateProfile(ctx context.Context, user *models.User, changes ProfileChanges) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	updated := *user
	if changes.Name != nil {
		updated.Name = strings.TrimSpace(*changes.Name)
	}
	if changes.Image != nil {
		updated.Image = strings.TrimSpace(*changes.Image)
	}
	if changes.Bio != nil {
		updated.Bio = strings.TrimSpace(*changes.Bio)
	}
	if changes.Password != nil {
		if user.PasswordHash != "" {
			if err := auth.CheckPassword(user.PasswordHash, changes.CurrentPassword); err != nil {
				return nil, err
			}
		}
		if err := auth.ValidatePassword(*changes.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*changes.Password)
		if err != nil {
			return nil, err
		}
		updated.PasswordHash = hash
	}

	if err := a.users.UpdateProfile(&updated); err != nil {
		return nil, err
	}
	return a.users.Get(user.ID)
}

func (a *Accounts) session(user *models.User, created bool) (*Session, bool, error) {
	s, err := a.issue(user)
	return s, created, err
}

func (a *Accounts) issue(user *models.User) (*Session, error) {
	token, expires, err := a.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}
