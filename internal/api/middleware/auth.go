package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"slices"

	"testseries/internal/common"
	"testseries/internal/common/security"
	"testseries/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const (
	userCtxKey     contextKey = "user"
	identityCtxKey contextKey = "identity"
)

// UserLoader resolves the user a verified token belongs to.
type UserLoader interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Authenticator requires a valid bearer token and loads its user.
func Authenticator(verifier security.Verifier, users UserLoader) func(http.Handler) http.Handler {
	return authenticate(verifier, users, true)
}

// OptionalAuthenticator attaches the user when a token is sent and lets
// anonymous requests through.
func OptionalAuthenticator(verifier security.Verifier, users UserLoader) func(http.Handler) http.Handler {
	return authenticate(verifier, users, false)
}

func authenticate(verifier security.Verifier, users UserLoader, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := jwtauth.TokenFromHeader(r)
			if raw == "" && !required {
				next.ServeHTTP(w, r)
				return
			}

			id, err := verifier.Verify(r.Context(), raw)
			if err != nil {
				common.RespondWithError(w, http.StatusUnauthorized, tokenErrorMessage(err))
				return
			}

			user, err := users.FindByID(r.Context(), id.UserID)
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					common.RespondWithError(w, http.StatusUnauthorized, "User not found")
					return
				}
				log.Printf("ERROR: Failed to load user %s: %v", id.UserID, err)
				common.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), userCtxKey, user)
			ctx = context.WithValue(ctx, identityCtxKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, security.ErrTokenMissing):
		return "Authorization token required"
	case errors.Is(err, security.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, security.ErrTokenRevoked):
		return "Token revoked"
	}
	return "Invalid token"
}

// RequireRole rejects authenticated users whose role is not listed.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}
			if !slices.Contains(roles, user.Role) {
				common.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetUser(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userCtxKey).(*model.User)
	return user, ok
}

func GetIdentity(ctx context.Context) (*security.Identity, bool) {
	id, ok := ctx.Value(identityCtxKey).(*security.Identity)
	return id, ok
}

// WithUser returns ctx carrying user, as Authenticator would.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}
