package mw

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/smartmark/smartmark/internal/auth"
	"github.com/smartmark/smartmark/internal/httpserver/deps"
	"github.com/smartmark/smartmark/internal/logger"
)

type contextKey string

const identityKey contextKey = "identity"

// Auth returns middleware that validates a Bearer token from the
// Authorization header and stores the caller identity in the context.
// The error body matches the rest of the API: {"error": "Unauthorized"}.
func Auth(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || token == "" {
				writeUnauthorized(w)
				return
			}

			ident, err := verifier.Validate(token)
			if err != nil {
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext extracts the authenticated identity from the request context.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(auth.Identity)
	return ident, ok
}

// WithIdentity injects an identity into a context. Exposed for handler tests.
func WithIdentity(ctx context.Context, ident auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// SyncProfile mirrors the caller's identity into the profiles table on every
// authenticated request. Best effort: an upsert failure is logged and the
// request proceeds, the profile mirror is never load-bearing.
func SyncProfile(profiles deps.ProfileStore, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ident, ok := IdentityFromContext(r.Context()); ok {
				if err := profiles.UpsertProfile(r.Context(), ident.Profile()); err != nil {
					log.Warn("profile sync failed",
						logger.String("user_id", ident.ID),
						logger.Error(err))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
