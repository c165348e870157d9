package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/devconnector/internal/auth"
)

const testSecret = "middleware-test-secret"

func protected(t *testing.T) (http.Handler, *string) {
	t.Helper()
	var seen string
	manager := auth.NewJWTManager(testSecret, time.Hour, "devconnector")
	handler := RequireAuth(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		seen = userID
		w.WriteHeader(http.StatusNoContent)
	}))
	return handler, &seen
}

func tokenFor(t *testing.T, secret, userID string) string {
	t.Helper()
	token, err := auth.NewJWTManager(secret, time.Hour, "devconnector").Generate(userID)
	require.NoError(t, err)
	return token
}

func problemMsg(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Msg string `json:"msg"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Msg
}

func TestRequireAuth_XAuthTokenHeader(t *testing.T) {
	handler, seen := protected(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth", nil)
	req.Header.Set(auth.TokenHeader, tokenFor(t, testSecret, "01HYX3KQW7ERTV9XNBM2P8QJZF"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "01HYX3KQW7ERTV9XNBM2P8QJZF", *seen)
}

func TestRequireAuth_BearerHeader(t *testing.T) {
	handler, seen := protected(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, testSecret, "user-2"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "user-2", *seen)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	handler, _ := protected(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "No token, authorization denied", problemMsg(t, rec))
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	handler, _ := protected(t)

	for name, token := range map[string]string{
		"garbage":      "not.a.jwt",
		"wrong secret": tokenFor(t, "another-secret", "user-1"),
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth", nil)
			req.Header.Set(auth.TokenHeader, token)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Equal(t, "Token is not valid", problemMsg(t, rec))
		})
	}
}

func TestUserIDFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := UserIDFromContext(req.Context())
	require.False(t, ok)

	_, ok = UserIDFromContext(WithUserID(req.Context(), ""))
	require.False(t, ok)
}
