package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/devconnector/internal/api/handlers"
	"github.com/Togather-Foundation/devconnector/internal/api/middleware"
	"github.com/Togather-Foundation/devconnector/internal/audit"
	"github.com/Togather-Foundation/devconnector/internal/auth"
	"github.com/Togather-Foundation/devconnector/internal/config"
	"github.com/Togather-Foundation/devconnector/internal/domain/posts"
	"github.com/Togather-Foundation/devconnector/internal/domain/profiles"
	"github.com/Togather-Foundation/devconnector/internal/domain/users"
	"github.com/Togather-Foundation/devconnector/internal/metrics"
	"github.com/Togather-Foundation/devconnector/internal/storage"
)

// RouterDeps are the collaborators the HTTP surface is built from. Notifier,
// GitHub, Health and RateLimiter may be nil.
type RouterDeps struct {
	Config      config.Config
	Logger      zerolog.Logger
	Repo        storage.Repository
	Tokens      *auth.JWTManager
	Notifier    users.Notifier
	GitHub      handlers.RepoLister
	Health      *handlers.HealthChecker
	RateLimiter *middleware.RateLimiter
	// UserOptions tune the users service, e.g. bcrypt cost in tests.
	UserOptions []users.Option

	Version   string
	GitCommit string
	BuildDate string
}

// NewRouter wires services, handlers and the middleware chain.
func NewRouter(deps RouterDeps) http.Handler {
	cfg := deps.Config
	env := cfg.Environment

	usersService := users.NewService(deps.Repo.Users(), deps.Tokens, deps.Notifier, deps.Logger, deps.UserOptions...)
	profilesService := profiles.NewService(deps.Repo.Profiles(), deps.Logger)
	postsService := posts.NewService(deps.Repo.Posts(), deps.Repo.Users(), deps.Logger)

	authHandler := handlers.NewAuthHandler(usersService, env)
	profilesHandler := handlers.NewProfilesHandler(profilesService, usersService, deps.GitHub, audit.NewLogger(deps.Logger), env)
	postsHandler := handlers.NewPostsHandler(postsService, env)

	// The caller owns the limiter and stops it; without one nothing is limited.
	rl := deps.RateLimiter
	requireAuth := middleware.RequireAuth(deps.Tokens)
	public := rl.Limit(middleware.TierPublic)
	login := rl.Limit(middleware.TierLogin)
	userLimit := rl.Limit(middleware.TierUser)

	// private routes authenticate first so the user tier is keyed by account.
	private := func(h http.HandlerFunc) http.Handler {
		return requireAuth(userLimit(h))
	}
	open := func(h http.HandlerFunc) http.Handler {
		return public(h)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", handlers.Root())
	mux.Handle("GET /healthz", handlers.Healthz())
	if deps.Health != nil {
		mux.Handle("GET /readyz", deps.Health.Readyz())
	}
	mux.Handle("GET /version", VersionHandler(deps.Version, deps.GitCommit, deps.BuildDate))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("GET /api/openapi.json", OpenAPIHandler())

	mux.Handle("POST /api/users", login(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth", login(http.HandlerFunc(authHandler.Login)))
	mux.Handle("GET /api/auth", private(authHandler.Me))

	mux.Handle("GET /api/profile/me", private(profilesHandler.Me))
	mux.Handle("POST /api/profile", private(profilesHandler.Save))
	mux.Handle("GET /api/profile", open(profilesHandler.List))
	mux.Handle("DELETE /api/profile", private(profilesHandler.DeleteAccount))
	mux.Handle("GET /api/profile/user/{user_id}", open(profilesHandler.ByUser))
	mux.Handle("PUT /api/profile/experience", private(profilesHandler.AddExperience))
	mux.Handle("DELETE /api/profile/experience/{exp_id}", private(profilesHandler.DeleteExperience))
	mux.Handle("PUT /api/profile/education", private(profilesHandler.AddEducation))
	mux.Handle("DELETE /api/profile/education/{edu_id}", private(profilesHandler.DeleteEducation))
	mux.Handle("GET /api/profile/github/{username}", open(profilesHandler.GitHubRepos))

	mux.Handle("POST /api/posts", private(postsHandler.Create))
	mux.Handle("GET /api/posts", private(postsHandler.List))
	mux.Handle("GET /api/posts/{id}", private(postsHandler.Get))
	mux.Handle("DELETE /api/posts/{id}", private(postsHandler.Delete))
	mux.Handle("PUT /api/posts/like/{id}", private(postsHandler.Like))
	mux.Handle("PUT /api/posts/unlike/{id}", private(postsHandler.Unlike))
	mux.Handle("POST /api/posts/comment/{id}", private(postsHandler.Comment))
	mux.Handle("DELETE /api/posts/comment/{id}/{comment_id}", private(postsHandler.DeleteComment))

	var handler http.Handler = metrics.CaptureRoute(mux)
	handler = middleware.RequestSize(middleware.DefaultMaxBodySize)(handler)
	handler = middleware.CORS(cfg.CORS, deps.Logger)(handler)
	handler = middleware.SecurityHeaders(env == "production")(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging()(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	handler = middleware.Tracing(handler)
	return handler
}
