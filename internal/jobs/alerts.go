package jobs

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
)

// FailureRecorder counts job failures by kind, usually into Prometheus.
type FailureRecorder interface {
	JobFailed(kind string, panicked bool)
}

// FailureHandler is River's ErrorHandler: it logs every failed or panicking
// job with its attempt number and reports it to the recorder.
type FailureHandler struct {
	logger   zerolog.Logger
	recorder FailureRecorder
}

func NewFailureHandler(logger zerolog.Logger, recorder FailureRecorder) *FailureHandler {
	return &FailureHandler{
		logger:   logger.With().Str("component", "jobs").Logger(),
		recorder: recorder,
	}
}

func (h *FailureHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	h.event(job, false).Err(err).Msg("job failed")
	return nil
}

func (h *FailureHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	h.event(job, true).
		Err(fmt.Errorf("panic: %v", panicVal)).
		Str("trace", trace).
		Msg("job panicked")
	return nil
}

func (h *FailureHandler) event(job *rivertype.JobRow, panicked bool) *zerolog.Event {
	if h.recorder != nil {
		h.recorder.JobFailed(job.Kind, panicked)
	}
	evt := h.logger.Error().
		Int64("job_id", job.ID).
		Str("kind", job.Kind).
		Int("attempt", job.Attempt)
	if job.MaxAttempts > 0 && job.Attempt >= job.MaxAttempts {
		evt = evt.Bool("discarding", true)
	}
	return evt
}
