package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAPIHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	OpenAPIHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Equal(t, "3.0.3", doc.OpenAPI)

	for path, methods := range map[string][]string{
		"/api/users":                           {"post"},
		"/api/auth":                            {"get", "post"},
		"/api/profile":                         {"get", "post", "delete"},
		"/api/profile/me":                      {"get"},
		"/api/profile/user/{user_id}":          {"get"},
		"/api/profile/experience":              {"put"},
		"/api/profile/experience/{exp_id}":     {"delete"},
		"/api/profile/education":               {"put"},
		"/api/profile/education/{edu_id}":      {"delete"},
		"/api/profile/github/{username}":       {"get"},
		"/api/posts":                           {"get", "post"},
		"/api/posts/{id}":                      {"get", "delete"},
		"/api/posts/like/{id}":                 {"put"},
		"/api/posts/unlike/{id}":               {"put"},
		"/api/posts/comment/{id}":              {"post"},
		"/api/posts/comment/{id}/{comment_id}": {"delete"},
	} {
		require.Contains(t, doc.Paths, path)
		for _, method := range methods {
			require.Contains(t, doc.Paths[path], method, path)
		}
	}
}
