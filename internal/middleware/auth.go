package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/quizbirr/quizbirr-api/internal/pkg/jwt"
	"github.com/quizbirr/quizbirr-api/internal/pkg/logger"
	"github.com/quizbirr/quizbirr-api/internal/pkg/response"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	roleKey
)

const RoleAdmin = "admin"

// Auth validates the bearer token and stores the caller in the request context.
// Deactivated accounts get 403 so they cannot move money with a still-valid token.
func Auth(jwtService *jwt.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			claims, err := jwtService.ValidateAccessToken(raw)
			switch {
			case errors.Is(err, jwt.ErrExpiredToken):
				response.Unauthorized(w, "Token expired")
				return
			case err != nil:
				response.Unauthorized(w, "Invalid token")
				return
			case claims.Inactive:
				response.Forbidden(w, "Your account is deactivated")
				return
			}

			ctx := WithUser(r.Context(), claims.UserID, claims.Role)
			ctx = logger.WithUserID(ctx, claims.UserID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken reads the Authorization header, falling back to the token query
// parameter which browsers use for websocket upgrades.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

// WithUser stores the authenticated caller in ctx.
func WithUser(ctx context.Context, userID uuid.UUID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// GetUserID returns the authenticated user, or uuid.Nil.
func GetUserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userIDKey).(uuid.UUID)
	return id
}

// UserIDFromRequest adapts GetUserID for handlers that take a request.
func UserIDFromRequest(r *http.Request) uuid.UUID {
	return GetUserID(r.Context())
}

// GetRole returns the authenticated role, or "".
func GetRole(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

// RequireAdmin rejects callers without the admin role. It must run after Auth.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetRole(r.Context()) != RoleAdmin {
				response.Forbidden(w, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
