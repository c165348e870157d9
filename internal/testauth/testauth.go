// Package testauth mints tokens for tests, local development and the
// gentoken CLI. It must never be wired into the serving path.
package testauth

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Togather-Foundation/devconnector/internal/auth"
)

// DevSecret matches the JWT_SECRET shipped in the development .env.
const DevSecret = "dev_jwt_secret_change_me_in_production"

// DevIssuer matches the default issuer in config.Defaults.
const DevIssuer = "devconnector"

// AuthMode selects how the token is attached to a request.
type AuthMode string

const (
	// AuthModeHeader sends the token in x-auth-token, like the browser client.
	AuthModeHeader AuthMode = "header"
	// AuthModeBearer sends Authorization: Bearer <token>.
	AuthModeBearer AuthMode = "bearer"
	// AuthModeNone sends nothing.
	AuthModeNone AuthMode = "none"
)

type TestAuthenticator struct {
	mode  AuthMode
	token string
}

type Config struct {
	Mode AuthMode

	// JWTSecret defaults to DEV_JWT_SECRET or DevSecret.
	JWTSecret string
	JWTIssuer string

	// UserID becomes the token subject.
	UserID string
}

func NewTestAuthenticator(cfg Config) (*TestAuthenticator, error) {
	if cfg.Mode == "" {
		cfg.Mode = AuthModeHeader
	}

	switch cfg.Mode {
	case AuthModeHeader, AuthModeBearer:
		if cfg.UserID == "" {
			return nil, fmt.Errorf("user id is required for mode %s", cfg.Mode)
		}
		token, err := Token(cfg.JWTSecret, cfg.JWTIssuer, cfg.UserID)
		if err != nil {
			return nil, err
		}
		return &TestAuthenticator{mode: cfg.Mode, token: token}, nil
	case AuthModeNone:
		return &TestAuthenticator{mode: cfg.Mode}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode: %s", cfg.Mode)
	}
}

// AddAuth adds authentication headers to an HTTP request.
func (ta *TestAuthenticator) AddAuth(req *http.Request) {
	if req == nil {
		return
	}

	switch ta.mode {
	case AuthModeHeader:
		req.Header.Set(auth.TokenHeader, ta.token)
	case AuthModeBearer:
		req.Header.Set("Authorization", "Bearer "+ta.token)
	case AuthModeNone:
	}
}

func (ta *TestAuthenticator) Token() string {
	return ta.token
}

// Token signs a token for userID, applying dev defaults for empty arguments.
func Token(secret, issuer, userID string) (string, error) {
	if secret == "" {
		secret = os.Getenv("DEV_JWT_SECRET")
	}
	if secret == "" {
		secret = DevSecret
	}
	if issuer == "" {
		issuer = DevIssuer
	}

	token, err := auth.NewJWTManager(secret, 24*time.Hour, issuer).Generate(userID)
	if err != nil {
		return "", fmt.Errorf("failed to generate JWT: %w", err)
	}
	return token, nil
}
