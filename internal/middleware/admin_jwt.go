package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/wahans/throttl/internal/auth"
	"github.com/wahans/throttl/internal/utils"
)

// ContextKey is the type for request context keys set by middleware
type ContextKey string

const (
	// AdminSubjectKey holds the authenticated admin's subject claim
	AdminSubjectKey ContextKey = "adminSubject"
)

// AdminJWT guards the management API with HS256 bearer tokens. It is only
// mounted when an admin secret is configured; without one the management
// endpoints are open, which suits standalone deployments.
func AdminJWT(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			claims, err := auth.ValidateAdminJWT(tokenString, secret)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), AdminSubjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminSubject retrieves the authenticated admin subject from the context
func GetAdminSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(AdminSubjectKey).(string)
	return subject, ok
}
