package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/devconnector/internal/api/problem"
	"github.com/Togather-Foundation/devconnector/internal/auth"
)

type contextKey string

const userIDKey contextKey = "user_id"

// TokenValidator verifies a session token; *auth.JWTManager implements it.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// RequireAuth rejects requests without a valid token in x-auth-token or an
// Authorization Bearer header, and attaches the token subject to the context.
func RequireAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromRequest(r)
			if err != nil || token == "" {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "No token, authorization denied", nil, "")
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrMissingToken) {
					zerolog.Ctx(r.Context()).Warn().Err(err).Msg("token validation failed")
				}
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Token is not valid", nil, "")
				return
			}

			userID := claims.UserID()
			ctx := WithUserID(r.Context(), userID)
			logger := zerolog.Ctx(ctx).With().Str("user_id", userID).Logger()
			ctx = logger.WithContext(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUserID stores the authenticated user id on the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the id RequireAuth attached.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}
