package models

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/desertthunder/zylofm/internal/shared"
)

// Role is a user's permission level. Roles are ordered: listener < dj < admin.
type Role string

const (
	RoleListener Role = "listener"
	RoleDJ       Role = "dj"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{RoleListener: 1, RoleDJ: 2, RoleAdmin: 3}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("%w: unknown role %q", shared.ErrInvalidInput, s)
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants every permission of other.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other] && r.Valid()
}

func (r Role) String() string { return string(r) }

// Auth providers a [User] can sign in with.
const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
)

// User is an account. PasswordHash is empty for accounts created through an OAuth provider.
type User struct {
	Record
	Email        string `json:"email" db:"email"`
	Name         string `json:"name" db:"name"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         Role   `json:"role" db:"role"`
	Image        string `json:"image" db:"image"`
	Bio          string `json:"bio" db:"bio"`
	Provider     string `json:"provider" db:"provider"`
	ProviderID   string `json:"-" db:"provider_id"`
}

// NewUser creates a credentials-backed listener with a normalized email.
func NewUser(email, name string) *User {
	return &User{
		Email:    shared.NormalizeEmail(email),
		Name:     strings.TrimSpace(name),
		Role:     RoleListener,
		Provider: ProviderCredentials,
	}
}

// Validate checks email shape, name and role.
func (u *User) Validate() error {
	if u.Email == "" {
		return fmt.Errorf("%w: email is required", shared.ErrInvalidInput)
	}
	if addr, err := mail.ParseAddress(u.Email); err != nil || addr.Address != u.Email {
		return fmt.Errorf("%w: invalid email %q", shared.ErrInvalidInput, u.Email)
	}
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: name is required", shared.ErrInvalidInput)
	}
	if len(u.Name) > 100 {
		return fmt.Errorf("%w: name must be at most 100 characters", shared.ErrInvalidInput)
	}
	if !u.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", shared.ErrInvalidInput, u.Role)
	}
	switch u.Provider {
	case ProviderCredentials, ProviderGoogle:
	default:
		return fmt.Errorf("%w: unknown provider %q", shared.ErrInvalidInput, u.Provider)
	}
	return nil
}

// Profile is the public view of a DJ.
type Profile struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Image    string `json:"image" db:"image"`
	Bio      string `json:"bio" db:"bio"`
	MixCount int    `json:"mix_count" db:"mix_count"`
	Plays    int    `json:"plays" db:"plays"`
}
