package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/campuspoints/loyalty-service/internal/infrastructure/redis"
	"github.com/campuspoints/loyalty-service/internal/models"
)

type contextKey string

const (
	ContextUserID contextKey = "user_id"
	ContextUtorid contextKey = "utorid"
	ContextRole   contextKey = "role"
)

func UserIDFrom(ctx context.Context) (int32, bool) {
	id, ok := ctx.Value(ContextUserID).(int32)
	return id, ok
}

func UtoridFrom(ctx context.Context) (string, bool) {
	utorid, ok := ctx.Value(ContextUtorid).(string)
	return utorid, ok
}

func RoleFrom(ctx context.Context) (models.Role, bool) {
	role, ok := ctx.Value(ContextRole).(models.Role)
	return role, ok
}

// Middleware validates the bearer token, checks it against the Redis token
// cache (so logged-out tokens are rejected before expiry), and puts the
// resolved identity on the request context.
func Middleware(redisClient redis.RedisClient, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "authorization header missing", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}

			tokenStr := parts[1]
			userID, utorid, role, err := ParseToken(tokenStr, jwtSecret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			redisKey := fmt.Sprintf("user:%d:token", userID)
			storedToken, err := redisClient.Get(r.Context(), redisKey)
			if err != nil || storedToken != tokenStr {
				slog.Error("invalid or revoked token", "user_id", userID, "error", err)
				http.Error(w, "invalid or revoked token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextUserID, userID)
			ctx = context.WithValue(ctx, ContextUtorid, utorid)
			ctx = context.WithValue(ctx, ContextRole, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a handler behind the ordered role ranking.
func RequireRole(required models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFrom(r.Context())
			if !ok || !role.HasClearance(required) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
