package api

import (
	"context"
	"net/http"

	"github.com/strideapp/stride/internal/api/respond"
	"github.com/strideapp/stride/internal/auth"
)

type contextKey string

const userIDKey contextKey = "userID"

// authMiddleware validates the bearer token and stores the authenticated
// user id in the request context.
func authMiddleware(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ExtractBearer(r.Header.Get("Authorization"))
			if err != nil {
				respond.WriteUnauthorized(w, "missing or malformed authorization header")
				return
			}
			claims, err := tokens.Validate(token)
			if err != nil {
				respond.WriteUnauthorized(w, "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userID returns the authenticated user id placed by authMiddleware.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
