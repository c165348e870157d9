package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Togather-Foundation/devconnector/internal/api"
	"github.com/Togather-Foundation/devconnector/internal/api/handlers"
	"github.com/Togather-Foundation/devconnector/internal/api/middleware"
	"github.com/Togather-Foundation/devconnector/internal/auth"
	"github.com/Togather-Foundation/devconnector/internal/config"
	"github.com/Togather-Foundation/devconnector/internal/domain/users"
	"github.com/Togather-Foundation/devconnector/internal/email"
	"github.com/Togather-Foundation/devconnector/internal/github"
	"github.com/Togather-Foundation/devconnector/internal/jobs"
	"github.com/Togather-Foundation/devconnector/internal/metrics"
	"github.com/Togather-Foundation/devconnector/internal/storage/postgres"
	"github.com/Togather-Foundation/devconnector/internal/telemetry"
)

const (
	shutdownTimeout   = 10 * time.Second
	dbCollectInterval = 15 * time.Second
)

type serveOptions struct {
	host        string
	port        int
	autoMigrate bool
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the DevConnector HTTP server",
		Long: `Start the DevConnector HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Apply database and job queue migrations unless --migrate=false
- Start the welcome-email workers when jobs are enabled
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "server port (default: 5000)")
	cmd.Flags().BoolVar(&opts.autoMigrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func runServer(ctx context.Context, global *globalOptions, opts *serveOptions) error {
	cfg, err := global.loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting devconnector server")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	poolCtx, poolCancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := postgres.NewPool(poolCtx, cfg.Database.URL, cfg.Database.MaxConnections)
	poolCancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	if opts.autoMigrate {
		if err := migrateAll(ctx, pool, cfg.Database); err != nil {
			return err
		}
		logger.Info().Msg("migrations applied")
	}

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}

	mailer, err := email.NewService(cfg.Email, cfg.Server.BaseURL, logger)
	if err != nil {
		return fmt.Errorf("email service: %w", err)
	}

	worker, notifier, err := newJobRunner(pool, cfg.Jobs, mailer, logger)
	if err != nil {
		return err
	}

	rl := middleware.NewRateLimiter(cfg.RateLimit)
	defer rl.Stop()

	handler := api.NewRouter(api.RouterDeps{
		Config:      cfg,
		Logger:      logger,
		Repo:        repo,
		Tokens:      auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.JWTIssuer),
		Notifier:    notifier,
		GitHub:      github.NewClient(cfg.GitHub),
		Health:      handlers.NewHealthChecker(pool, cfg.Jobs.Enabled, Version, GitCommit),
		RateLimiter: rl,
		Version:     Version,
		GitCommit:   GitCommit,
		BuildDate:   BuildDate,
	})

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return metrics.NewDBCollector(pool).Run(gctx, dbCollectInterval)
	})

	if worker != nil {
		g.Go(func() error {
			if err := worker.Start(gctx); err != nil {
				return fmt.Errorf("river workers failed to start: %w", err)
			}
			logger.Info().Int("max_workers", cfg.Jobs.MaxWorkers).Msg("job workers started")
			<-gctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := worker.Stop(stopCtx); err != nil {
				logger.Error().Err(err).Msg("river workers shutdown error")
				return nil
			}
			logger.Info().Msg("job workers stopped")
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
			return err
		}
		logger.Info().Msg("server stopped")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// jobWorker is the lifecycle half of *river.Client.
type jobWorker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// newJobRunner builds the River client that delivers welcome emails. With
// jobs disabled, registrations send the email inline and no worker runs.
func newJobRunner(pool *pgxpool.Pool, cfg config.JobsConfig, mailer jobs.WelcomeMailer, logger zerolog.Logger) (jobWorker, users.Notifier, error) {
	if !cfg.Enabled {
		logger.Warn().Msg("job workers disabled, welcome emails are sent inline")
		return nil, jobs.NewDirectNotifier(mailer), nil
	}

	policy := jobs.NewRetryPolicy()
	if cfg.RetryWelcomeMail > 0 {
		policy = policy.WithMaxAttempts(jobs.JobKindWelcomeEmail, cfg.RetryWelcomeMail)
	}

	riverConfig := jobs.NewClientConfig(
		jobs.NewWorkers(mailer, logger),
		policy,
		cfg.MaxWorkers,
		riverLogger(logger),
		jobs.NewFailureHandler(logger, metrics.JobFailureRecorder{}),
	)
	riverConfig.Hooks = []rivertype.Hook{metrics.NewRiverMetricsHook()}

	client, err := jobs.NewClient(pool, riverConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("river client: %w", err)
	}
	return client, jobs.NewQueueNotifier(client, policy), nil
}

// riverLogger bridges River's slog output to stderr at the configured level.
func riverLogger(logger zerolog.Logger) *slog.Logger {
	level := slog.LevelInfo
	switch logger.GetLevel() {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		level = slog.LevelDebug
	case zerolog.WarnLevel:
		level = slog.LevelWarn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With("component", "river")
}

func migrateAll(ctx context.Context, pool *pgxpool.Pool, cfg config.DatabaseConfig) error {
	if err := postgres.MigrateUp(cfg.URL, cfg.MigrationsPath); err != nil {
		return err
	}
	return postgres.MigrateRiver(ctx, pool)
}
