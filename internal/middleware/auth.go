package middleware

import (
	"context"
	"net/http"
	"strings"

	"referral-service/internal/domain"
	"referral-service/internal/jwtutil"
	"referral-service/internal/repository"
	"referral-service/internal/response"
)

type contextKey string

const (
	ContextUserID contextKey = "userID"
	ContextUser   contextKey = "user"
	ContextRole   contextKey = "role"
)

func GetUserID(ctx context.Context) (int64, bool) {
	val, ok := ctx.Value(ContextUserID).(int64)
	return val, ok
}

func GetUser(ctx context.Context) (*domain.User, bool) {
	val, ok := ctx.Value(ContextUser).(*domain.User)
	return val, ok
}

// AuthMiddleware validates bearer tokens and loads the authenticated user
// onto the request context, so role checks downstream see current flags and
// not signed-in-the-past claims.
type AuthMiddleware struct {
	tokens *jwtutil.Manager
	users  repository.UserRepository
}

func NewAuthMiddleware(tokens *jwtutil.Manager, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

func (am *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Error(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		claims, err := am.tokens.ParseAndValidate(token)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		user, err := am.users.GetByID(r.Context(), nil, claims.UserID)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "Invalid user")
			return
		}

		ctx := context.WithValue(r.Context(), ContextUserID, user.ID)
		ctx = context.WithValue(ctx, ContextUser, user)
		ctx = context.WithValue(ctx, ContextRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAgent gates agent-only routes. Runs after Require.
func RequireAgent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok || !user.IsAgent {
			response.Error(w, http.StatusForbidden, "Agent access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin gates admin-only routes. Runs after Require.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok || !user.IsAdmin {
			response.Error(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
