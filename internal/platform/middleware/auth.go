package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "biomatch/pkg/domain"
	"biomatch/pkg/requestcontext"
)

// TokenValidator defines the interface for validating access tokens.
type TokenValidator interface {
	TenantFromToken(tokenString string) (id.TenantID, error)
}

type contextKeyTenantID struct{}

// GetTenantID retrieves the authenticated tenant from the context. Handlers
// behind RequireAuth can rely on it being set.
func GetTenantID(ctx context.Context) id.TenantID {
	if tenantID, ok := ctx.Value(contextKeyTenantID{}).(id.TenantID); ok {
		return tenantID
	}
	return id.TenantID{}
}

// WithTenantID injects a tenant into a context.
// Useful for handler unit tests that don't run the full middleware chain.
func WithTenantID(ctx context.Context, tenantID id.TenantID) context.Context {
	return context.WithValue(ctx, contextKeyTenantID{}, tenantID)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + errCode + `","message":"` + errDesc + `"}`))
}

// RequireAuth authenticates the tenant from the Authorization bearer token.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			after, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				logger.WarnContext(r.Context(), "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(r.Context()),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			tenantID, err := validator.TenantFromToken(after)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyTenantID{}, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
