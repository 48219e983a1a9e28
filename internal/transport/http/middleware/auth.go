package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"epts/internal/domain/auth"
	"epts/internal/transport/http/api"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

// UserChecker confirms a token subject still maps to an active account.
type UserChecker interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// Auth attaches the bearer token's user to the request context. Requests
// without a valid token pass through anonymously; RequireAuth rejects them.
func Auth(secret string, users UserChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if users != nil {
				exists, err := users.UserExists(r.Context(), claims.UserID)
				if err != nil {
					slog.Warn("auth user lookup failed", "userId", claims.UserID, "err", err)
				}
				if err != nil || !exists {
					next.ServeHTTP(w, r)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.User())))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}
