package jobs

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/Togather-Foundation/devconnector/internal/domain/users"
)

// Inserter is the part of *river.Client used to enqueue work.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// QueueNotifier turns registrations into welcome-email jobs.
type QueueNotifier struct {
	inserter Inserter
	policy   *RetryPolicy
}

func NewQueueNotifier(inserter Inserter, policy *RetryPolicy) *QueueNotifier {
	if policy == nil {
		policy = NewRetryPolicy()
	}
	return &QueueNotifier{inserter: inserter, policy: policy}
}

func (n *QueueNotifier) UserRegistered(ctx context.Context, user users.User) error {
	opts := n.policy.InsertOpts(JobKindWelcomeEmail)
	_, err := n.inserter.Insert(ctx, WelcomeEmailArgs{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}, &opts)
	if err != nil {
		return fmt.Errorf("enqueue welcome email: %w", err)
	}
	return nil
}

// DirectNotifier sends the welcome email inline; used when job workers are disabled.
type DirectNotifier struct {
	mailer WelcomeMailer
}

func NewDirectNotifier(mailer WelcomeMailer) *DirectNotifier {
	return &DirectNotifier{mailer: mailer}
}

func (n *DirectNotifier) UserRegistered(ctx context.Context, user users.User) error {
	return n.mailer.SendWelcome(ctx, user.Email, user.Name)
}
