// Package auth verifies HS256 bearer tokens and carries the caller's identity
// through the request context.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/media-platform/internal/platform/api"
)

type ctxKeyUserID struct{}
type ctxKeyRole struct{}

var ErrNoBearer = errors.New("auth: no bearer token")

func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyUserID{}).(string)
	return v, ok && v != ""
}

// WithUserID injects user_id into context. Useful for testing.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID{}, uid)
}

// WithRole injects a role into context. Useful for testing.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole{}, role)
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyRole{}).(string)
	return v, ok
}

// IsAdmin reports whether the authenticated caller carries the admin role.
func IsAdmin(ctx context.Context) bool {
	role, _ := RoleFromContext(ctx)
	return strings.EqualFold(strings.TrimSpace(role), "admin")
}

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type JWTVerifier struct {
	Secret []byte
}

func (v JWTVerifier) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// authenticate returns ErrNoBearer when the request carries no Authorization
// header, and a parse error when it carries a bad one.
func (v JWTVerifier) authenticate(r *http.Request) (context.Context, error) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return nil, ErrNoBearer
	}
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return nil, errors.New("auth: unsupported scheme")
	}
	claims, err := v.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	ctx := context.WithValue(r.Context(), ctxKeyUserID{}, claims.Subject)
	if strings.TrimSpace(claims.Role) != "" {
		ctx = context.WithValue(ctx, ctxKeyRole{}, claims.Role)
	}
	return ctx, nil
}

// RequireUser middleware validates Bearer token and injects user_id into context.
func RequireUser(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := verifier.authenticate(r)
			if err != nil {
				api.Unauthorized(w, "UNAUTHORIZED", "valid bearer token required", "")
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalUser lets anonymous requests through untouched but still rejects a
// token that is present and invalid.
func OptionalUser(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := verifier.authenticate(r)
			switch {
			case errors.Is(err, ErrNoBearer):
				next.ServeHTTP(w, r)
			case err != nil:
				api.Unauthorized(w, "UNAUTHORIZED", "invalid bearer token", "")
			default:
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}
