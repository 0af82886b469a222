// Package api implements the promptvault REST API using chi.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// UserHeader carries the caller's display name, set by the fronting proxy.
const UserHeader = "X-Forwarded-User"

type ctxKey int

const userKey ctxKey = iota

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody(codeUnauthorized, "Authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserMiddleware stores the display name from UserHeader in the request context.
func UserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name := strings.TrimSpace(r.Header.Get(UserHeader)); name != "" {
			r = r.WithContext(context.WithValue(r.Context(), userKey, name))
		}
		next.ServeHTTP(w, r)
	})
}

// UserFrom returns the caller's display name, if any.
func UserFrom(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(userKey).(string)
	return name, ok
}
