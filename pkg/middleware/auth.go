package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/inkwell-io/inkwell/pkg/auth"
	"github.com/inkwell-io/inkwell/pkg/contextkeys"
)

// BearerVerifier resolves a bearer token to the account it represents.
type BearerVerifier interface {
	VerifyBearer(ctx context.Context, token string) (*auth.User, error)
}

// AuthMiddleware provides bearer-token authentication middleware
type AuthMiddleware struct {
	verifier BearerVerifier
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(verifier BearerVerifier, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract token from Authorization header
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			unauthorizedResponse(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorizedResponse(w, "invalid authorization header format")
			return
		}

		user, err := m.verifier.VerifyBearer(r.Context(), parts[1])
		if err != nil {
			unauthorizedResponse(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithUser(r.Context(), user)
		ctx = contextkeys.WithUserID(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

// GetUser extracts the authenticated user from the request context
func GetUser(r *http.Request) *auth.User {
	v := r.Context().Value(contextkeys.UserKey)
	if v == nil {
		return nil
	}
	user, ok := v.(*auth.User)
	if !ok {
		return nil
	}
	return user
}

// RequireAdmin creates middleware that restricts a route to admin accounts
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r)
		if user == nil {
			unauthorizedResponse(w, "authentication required")
			return
		}

		if !user.IsAdmin() {
			forbiddenResponse(w, "insufficient permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func forbiddenResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
