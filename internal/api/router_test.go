package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Togather-Foundation/devconnector/internal/api/middleware"
	"github.com/Togather-Foundation/devconnector/internal/auth"
	"github.com/Togather-Foundation/devconnector/internal/config"
	"github.com/Togather-Foundation/devconnector/internal/domain/users"
	"github.com/Togather-Foundation/devconnector/internal/storage/memory"
)

func newTestRouter(t *testing.T, mutate func(*config.Config)) http.Handler {
	t.Helper()
	cfg := config.Defaults()
	cfg.Environment = "test"
	cfg.CORS.AllowAllOrigins = true
	cfg.RateLimit = config.RateLimitConfig{}
	if mutate != nil {
		mutate(&cfg)
	}

	rl := middleware.NewRateLimiter(cfg.RateLimit)
	t.Cleanup(rl.Stop)

	return NewRouter(RouterDeps{
		Config:      cfg,
		Logger:      zerolog.Nop(),
		Repo:        memory.NewStore(),
		Tokens:      auth.NewJWTManager("router-test-secret", time.Hour, cfg.Auth.JWTIssuer),
		RateLimiter: rl,
		UserOptions: []users.Option{users.WithBcryptCost(bcrypt.MinCost)},
		Version:     "test",
	})
}

func send(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Root(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := send(t, h, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "API Running", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	require.Equal(t, http.StatusNotFound, send(t, h, http.MethodGet, "/nope", "", nil).Code)
}

func TestRouter_PostFlow(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := send(t, h, http.MethodPost, "/api/users", "", map[string]string{
		"name": "Jane", "email": "jane@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))

	rec = send(t, h, http.MethodPost, "/api/posts", tok.Token, map[string]string{"text": "hello"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var post struct {
		ID string `json:"_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))

	rec = send(t, h, http.MethodPut, "/api/posts/like/"+post.ID, tok.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(t, h, http.MethodGet, "/api/posts", tok.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"text":"hello"`)

	require.Equal(t, http.StatusUnauthorized, send(t, h, http.MethodGet, "/api/posts", "", nil).Code)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	h := newTestRouter(t, nil)
	rec := send(t, h, http.MethodPatch, "/api/posts", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_LoginRateLimit(t *testing.T) {
	h := newTestRouter(t, func(cfg *config.Config) {
		cfg.RateLimit.LoginPer15Minutes = 2
	})

	body := map[string]string{"email": "ghost@example.com", "password": "whatever"}
	require.Equal(t, http.StatusBadRequest, send(t, h, http.MethodPost, "/api/auth", "", body).Code)
	require.Equal(t, http.StatusBadRequest, send(t, h, http.MethodPost, "/api/auth", "", body).Code)

	rec := send(t, h, http.MethodPost, "/api/auth", "", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "180", rec.Header().Get("Retry-After"))
}

func TestRouter_NoRateLimiter(t *testing.T) {
	cfg := config.Defaults()
	cfg.Environment = "test"
	cfg.RateLimit.LoginPer15Minutes = 2
	h := NewRouter(RouterDeps{
		Config: cfg,
		Logger: zerolog.Nop(),
		Repo:   memory.NewStore(),
		Tokens: auth.NewJWTManager("router-test-secret", time.Hour, cfg.Auth.JWTIssuer),
	})

	body := map[string]string{"email": "ghost@example.com", "password": "whatever"}
	for range 6 {
		require.Equal(t, http.StatusBadRequest, send(t, h, http.MethodPost, "/api/auth", "", body).Code)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "x-auth-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_BodyTooLarge(t *testing.T) {
	h := newTestRouter(t, nil)

	payload := `{"text":"` + strings.Repeat("a", int(middleware.DefaultMaxBodySize)) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, nil)
	send(t, h, http.MethodGet, "/api/profile", "", nil)

	rec := send(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `devconnector_http_requests_total{method="GET",path="/api/profile"`)
}

func TestRouter_Version(t *testing.T) {
	h := newTestRouter(t, nil)
	rec := send(t, h, http.MethodGet, "/version", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"version":"test"`)
}
