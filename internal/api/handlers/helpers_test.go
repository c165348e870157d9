package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Togather-Foundation/devconnector/internal/api/middleware"
	"github.com/Togather-Foundation/devconnector/internal/api/problem"
	"github.com/Togather-Foundation/devconnector/internal/audit"
	"github.com/Togather-Foundation/devconnector/internal/auth"
	"github.com/Togather-Foundation/devconnector/internal/domain/posts"
	"github.com/Togather-Foundation/devconnector/internal/domain/profiles"
	"github.com/Togather-Foundation/devconnector/internal/domain/users"
	"github.com/Togather-Foundation/devconnector/internal/storage/memory"
	"github.com/Togather-Foundation/devconnector/internal/testauth"
)

type stubRepos struct {
	body json.RawMessage
	err  error
	seen string
}

func (s *stubRepos) Repos(_ context.Context, username string) (json.RawMessage, error) {
	s.seen = username
	return s.body, s.err
}

type testEnv struct {
	t       *testing.T
	store   *memory.Store
	handler http.Handler
	github  *stubRepos
}

// newTestEnv mounts every handler on a mux the way the router does, backed by
// the in-memory store.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	logger := zerolog.Nop()
	tokens := auth.NewJWTManager(testauth.DevSecret, time.Hour, testauth.DevIssuer)

	usersService := users.NewService(store.Users(), tokens, nil, logger, users.WithBcryptCost(bcrypt.MinCost))
	profilesService := profiles.NewService(store.Profiles(), logger)
	postsService := posts.NewService(store.Posts(), store.Users(), logger)
	gh := &stubRepos{}

	authH := NewAuthHandler(usersService, "test")
	profilesH := NewProfilesHandler(profilesService, usersService, gh, audit.NewLogger(logger), "test")
	postsH := NewPostsHandler(postsService, "test")

	private := middleware.RequireAuth(tokens)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users", authH.Register)
	mux.HandleFunc("POST /api/auth", authH.Login)
	mux.Handle("GET /api/auth", private(http.HandlerFunc(authH.Me)))

	mux.Handle("GET /api/profile/me", private(http.HandlerFunc(profilesH.Me)))
	mux.Handle("POST /api/profile", private(http.HandlerFunc(profilesH.Save)))
	mux.HandleFunc("GET /api/profile", profilesH.List)
	mux.HandleFunc("GET /api/profile/user/{user_id}", profilesH.ByUser)
	mux.Handle("DELETE /api/profile", private(http.HandlerFunc(profilesH.DeleteAccount)))
	mux.Handle("PUT /api/profile/experience", private(http.HandlerFunc(profilesH.AddExperience)))
	mux.Handle("DELETE /api/profile/experience/{exp_id}", private(http.HandlerFunc(profilesH.DeleteExperience)))
	mux.Handle("PUT /api/profile/education", private(http.HandlerFunc(profilesH.AddEducation)))
	mux.Handle("DELETE /api/profile/education/{edu_id}", private(http.HandlerFunc(profilesH.DeleteEducation)))
	mux.HandleFunc("GET /api/profile/github/{username}", profilesH.GitHubRepos)

	mux.Handle("POST /api/posts", private(http.HandlerFunc(postsH.Create)))
	mux.Handle("GET /api/posts", private(http.HandlerFunc(postsH.List)))
	mux.Handle("GET /api/posts/{id}", private(http.HandlerFunc(postsH.Get)))
	mux.Handle("DELETE /api/posts/{id}", private(http.HandlerFunc(postsH.Delete)))
	mux.Handle("PUT /api/posts/like/{id}", private(http.HandlerFunc(postsH.Like)))
	mux.Handle("PUT /api/posts/unlike/{id}", private(http.HandlerFunc(postsH.Unlike)))
	mux.Handle("POST /api/posts/comment/{id}", private(http.HandlerFunc(postsH.Comment)))
	mux.Handle("DELETE /api/posts/comment/{id}/{comment_id}", private(http.HandlerFunc(postsH.DeleteComment)))

	return &testEnv{t: t, store: store, handler: mux, github: gh}
}

// do sends a JSON request; token may be empty.
func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(auth.TokenHeader, token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// register creates an account and returns its token and id.
func (e *testEnv) register(name, email string) (string, string) {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/users", "", map[string]string{
		"name": name, "email": email, "password": "secret123",
	})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())

	var out tokenResponse
	decode(e.t, rec, &out)

	user, err := e.store.Users().GetByEmail(context.Background(), email)
	require.NoError(e.t, err)
	return out.Token, user.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) problem.ProblemDetails {
	t.Helper()
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p problem.ProblemDetails
	decode(t, rec, &p)
	return p
}

func requireProblem(t *testing.T, rec *httptest.ResponseRecorder, status int, msg string) problem.ProblemDetails {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	p := decodeProblem(t, rec)
	require.Equal(t, msg, p.Msg)
	return p
}
