package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can collide with our context
// values.
type contextKey string

const (
	userContextKey  contextKey = "auth.user"
	tokenContextKey contextKey = "auth.token"
)

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

// RequireAuth guards a route subtree behind a valid provider session.
//
// STATELESS BY DESIGN:
// There is no local session store. Every request revalidates its bearer token
// against the provider, so a token revoked there is dead here on the very
// next request.
func RequireAuth(identity Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeUnauthorized(w, "Authentication required. Please sign in.")
				return
			}

			user, err := identity.GetUser(r.Context(), token)
			if err != nil || user == nil || user.ID == "" {
				writeUnauthorized(w, "Session expired. Please sign in again.")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			ctx = context.WithValue(ctx, tokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin guards a route behind the operator API key carried in the
// X-Admin-Key header.
func RequireAdmin(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Admin-Key") != adminKey {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"success": false,
					"error":   "Admin access required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext returns the authenticated user placed by RequireAuth.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok
}

// TokenFromContext returns the bearer token placed by RequireAuth.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey).(string)
	return token, ok
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
