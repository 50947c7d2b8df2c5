package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/servicedesk-pro/servicedesk/internal/auth"
	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const claimsContextKey contextKey = "claims"

// OptionalAuth validates a Bearer token when one is present and stores the
// claims in the request context. Requests without a token pass through;
// requests with a bad token are rejected so a caller never silently loses
// their identity.
func OptionalAuth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := authService.ValidateToken(token)
			if err != nil {
				jsonError(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole requires an authenticated user holding one of the given
// roles. MUST be used inside a router that already runs OptionalAuth.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				jsonError(w, "authentication required", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			jsonError(w, "forbidden", http.StatusForbidden)
		})
	}
}

// ClaimsFromContext extracts the authenticated claims from request context.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
