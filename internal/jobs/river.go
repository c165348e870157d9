package jobs

import (
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
)

const (
	JobKindWelcomeEmail = "welcome_email"
)

const (
	QueueEmail = "email"
)

const (
	DefaultMaxAttempts      = 5
	WelcomeEmailMaxAttempts = 5
)

// RetryConfig controls per-kind retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryPolicy implements River's ClientRetryPolicy with per-kind exponential backoff.
type RetryPolicy struct {
	Default RetryConfig
	ByKind  map[string]RetryConfig
}

// NewRetryPolicy returns the default retry policy configuration.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		Default: RetryConfig{
			MaxAttempts: DefaultMaxAttempts,
			BaseDelay:   30 * time.Second,
			MaxDelay:    30 * time.Minute,
		},
		ByKind: map[string]RetryConfig{
			JobKindWelcomeEmail: {
				MaxAttempts: WelcomeEmailMaxAttempts,
				BaseDelay:   1 * time.Minute,
				MaxDelay:    1 * time.Hour,
			},
		},
	}
}

// WithMaxAttempts overrides the attempt budget of one job kind.
func (p *RetryPolicy) WithMaxAttempts(kind string, attempts int) *RetryPolicy {
	if attempts <= 0 {
		return p
	}
	cfg := p.configFor(kind)
	cfg.MaxAttempts = attempts
	p.ByKind[kind] = cfg
	return p
}

// NextRetry determines the next retry time for a failed job.
func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	config := p.configFor(job.Kind)
	if config.BaseDelay == 0 {
		return time.Now()
	}

	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(float64(config.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if job.AttemptedAt != nil {
		return job.AttemptedAt.Add(delay)
	}

	return time.Now().Add(delay)
}

// InsertOpts returns insert options for a job kind under this policy.
func (p *RetryPolicy) InsertOpts(kind string) river.InsertOpts {
	opts := river.InsertOpts{MaxAttempts: p.configFor(kind).MaxAttempts}
	if kind == JobKindWelcomeEmail {
		opts.Queue = QueueEmail
	}
	return opts
}

// InsertOptsForKind returns default insert options for a job kind.
func InsertOptsForKind(kind string) river.InsertOpts {
	return NewRetryPolicy().InsertOpts(kind)
}

// NewClientConfig builds a River client configuration with retry policy.
func NewClientConfig(workers *river.Workers, policy *RetryPolicy, maxWorkers int, logger *slog.Logger, errorHandler river.ErrorHandler) *river.Config {
	if policy == nil {
		policy = NewRetryPolicy()
	}
	if maxWorkers <= 0 {
		maxWorkers = 5
	}
	config := &river.Config{
		Workers:     workers,
		RetryPolicy: policy,
		MaxAttempts: policy.Default.MaxAttempts,
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
			QueueEmail:         {MaxWorkers: maxWorkers},
		},
		ErrorHandler: errorHandler,
	}
	if logger != nil {
		config.Logger = logger
	}
	return config
}

// NewClient creates a River client using pgx v5.
func NewClient(pool *pgxpool.Pool, config *river.Config) (*river.Client[pgx.Tx], error) {
	return river.NewClient(riverpgxv5.New(pool), config)
}

func (p *RetryPolicy) configFor(kind string) RetryConfig {
	if p == nil {
		return RetryConfig{MaxAttempts: DefaultMaxAttempts, BaseDelay: 30 * time.Second, MaxDelay: 30 * time.Minute}
	}
	if config, ok := p.ByKind[kind]; ok {
		return config
	}
	return p.Default
}
