package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/devconnector/internal/email"
)

// WelcomeMailer delivers the greeting sent after registration.
type WelcomeMailer interface {
	SendWelcome(ctx context.Context, to, name string) error
}

// WelcomeEmailArgs defines the job for greeting a newly registered user.
type WelcomeEmailArgs struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

func (WelcomeEmailArgs) Kind() string { return JobKindWelcomeEmail }

// WelcomeEmailWorker sends the welcome email. A provider rate limit snoozes
// the job instead of burning an attempt.
type WelcomeEmailWorker struct {
	river.WorkerDefaults[WelcomeEmailArgs]
	Mailer WelcomeMailer
	Logger zerolog.Logger
}

func (WelcomeEmailWorker) Kind() string { return JobKindWelcomeEmail }

func (w WelcomeEmailWorker) Timeout(*river.Job[WelcomeEmailArgs]) time.Duration {
	return 30 * time.Second
}

func (w WelcomeEmailWorker) Work(ctx context.Context, job *river.Job[WelcomeEmailArgs]) error {
	if job == nil {
		return fmt.Errorf("welcome email job missing")
	}
	if w.Mailer == nil {
		return fmt.Errorf("mailer not configured")
	}
	if job.Args.Email == "" {
		return river.JobCancel(fmt.Errorf("welcome email job %d has no recipient", job.ID))
	}

	err := w.Mailer.SendWelcome(ctx, job.Args.Email, job.Args.Name)
	if errors.Is(err, email.ErrRateLimited) {
		w.Logger.Warn().
			Str("user_id", job.Args.UserID).
			Int("attempt", job.Attempt).
			Msg("welcome email rate limited, snoozing")
		return river.JobSnooze(time.Minute)
	}
	if err != nil {
		return fmt.Errorf("send welcome email: %w", err)
	}

	w.Logger.Info().Str("user_id", job.Args.UserID).Msg("welcome email sent")
	return nil
}

// NewWorkers registers every worker this service runs.
func NewWorkers(mailer WelcomeMailer, logger zerolog.Logger) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker(workers, &WelcomeEmailWorker{
		Mailer: mailer,
		Logger: logger.With().Str("component", "jobs").Logger(),
	})
	return workers
}
