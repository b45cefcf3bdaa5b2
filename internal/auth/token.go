package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/shared"
)

// Claims are the JWT claims carried by a ZyloFM bearer token.
type Claims struct {
	Role  models.Role `json:"role"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string { return c.Subject }

// TokenIssuer signs and verifies bearer tokens with a shared HMAC secret.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a [TokenIssuer]. A non-positive ttl falls back to 72 hours.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// NewTokenIssuerFromConfig builds a [TokenIssuer] from the [auth] config section.
func NewTokenIssuerFromConfig(cfg shared.AuthConfig) *TokenIssuer {
	return NewTokenIssuer(cfg.JWTSecret, cfg.Issuer, cfg.TokenTTLDuration())
}

// TTL reports how long issued tokens stay valid.
func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for user and returns it with its expiry.
func (i *TokenIssuer) Issue(user *models.User) (string, time.Time, error) {
	if user == nil || user.ID == "" {
		return "", time.Time{}, fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	}

	now := i.now().UTC()
	expires := now.Add(i.ttl)
	claims := Claims{
		Role:  user.Role,
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        shared.GenerateID(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies signature, algorithm, issuer and expiry.
//
// Every failure wraps [shared.ErrUnauthorized]; expired tokens also wrap [shared.ErrTokenExpired].
func (i *TokenIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, opts...)

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %w", shared.ErrUnauthorized, shared.ErrTokenExpired)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	case !parsed.Valid:
		return nil, fmt.Errorf("%w: invalid token", shared.ErrUnauthorized)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", shared.ErrUnauthorized)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: token has unknown role %q", shared.ErrUnauthorized, claims.Role)
	}
	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("%w: missing authorization header", shared.ErrUnauthorized)
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: invalid authorization header format", shared.ErrUnauthorized)
	}
	return strings.TrimSpace(token), nil
}
