package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	tokenKey     contextKey = "bearerToken"
)

// HTTP header constants
const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
)

// Paths served without a token.
const (
	HealthPath  = "/health"
	MetricsPath = "/metrics"
)

// Error message constants
const (
	ErrAuthHeaderRequired = "Authorization header required"
	ErrInvalidAuthHeader  = "Invalid authorization header format"
	ErrInvalidToken       = "Invalid token"
	ErrMissingUsername    = "Token has no preferred_username"

	LogJWTValidationFailed = "JWT token validation failed"
)

var (
	ErrPrincipalNotFound = errors.New("principal not found in context")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenIssuedLater  = errors.New("token issued in the future")
)

// Claims are the JWT claims the portal reads. EmployeeID selects whose
// absences are listed when a query does not name one.
type Claims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	EmployeeID        int64  `json:"employee_id"`
}

// Principal is the authenticated caller.
type Principal struct {
	Subject    string `json:"sub"`
	Username   string `json:"username"`
	Name       string `json:"name,omitempty"`
	EmployeeID int64  `json:"employeeId,omitempty"`
}

// DisplayName prefers the full name over the username.
func (p Principal) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Username
}

func principalFromClaims(c *Claims) Principal {
	return Principal{
		Subject:    c.Subject,
		Username:   c.PreferredUsername,
		Name:       c.Name,
		EmployeeID: c.EmployeeID,
	}
}

// WithPrincipal stores the caller in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller stored by the middleware.
func PrincipalFromContext(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok {
		return Principal{}, ErrPrincipalNotFound
	}
	return p, nil
}

// WithToken stores the raw bearer token so backend clients can forward it.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext returns the raw bearer token, or "" when none was sent.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// Scope identifies the caller for per-user caching and notifications: the
// principal subject when the token was validated, otherwise a digest of the
// forwarded bearer token. It reports false for anonymous callers.
func Scope(ctx context.Context) (string, bool) {
	if p, err := PrincipalFromContext(ctx); err == nil && p.Subject != "" {
		return "sub:" + p.Subject, true
	}
	if token := TokenFromContext(ctx); token != "" {
		sum := sha256.Sum256([]byte(token))
		return "tok:" + hex.EncodeToString(sum[:16]), true
	}
	return "", false
}
