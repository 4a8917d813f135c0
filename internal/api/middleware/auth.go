package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dom/bookshelf-api/internal/auth"
)

type contextKey string

const (
	ClaimsKey contextKey = "sessionClaims"
)

// TokenValidator checks a bearer token and returns its claims.
type TokenValidator interface {
	Validate(token string) (*auth.SessionClaims, error)
}

// Auth admits requests carrying "Authorization: Bearer <token>" with a valid
// session token and stores the claims in the request context. Every other
// request gets 401 before the wrapped handler runs.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				slog.DebugContext(ctx, "auth rejected", "reason", "missing authorization header", "path", r.URL.Path)
				unauthorized(w, "Authorization header required")
				return
			}

			token, ok := bearerToken(authHeader)
			if !ok {
				slog.DebugContext(ctx, "auth rejected", "reason", "invalid authorization header format", "path", r.URL.Path)
				unauthorized(w, "Invalid authorization header")
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				slog.DebugContext(ctx, "auth rejected", "reason", err.Error(), "path", r.URL.Path)
				unauthorized(w, "Invalid token")
				return
			}

			ctx = context.WithValue(ctx, ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token of a "Bearer <token>" header. The scheme is
// case-insensitive; the token must be a single non-empty field.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="bookshelf"`)
	http.Error(w, msg, http.StatusUnauthorized)
}

func ClaimsFromContext(ctx context.Context) (*auth.SessionClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.SessionClaims)
	return claims, ok && claims != nil
}

func GetAccountID(ctx context.Context) (uuid.UUID, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	id, err := claims.AccountID()
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
