package jobs

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	failures map[string]int
	panics   int
}

func (r *countingRecorder) JobFailed(kind string, panicked bool) {
	if r.failures == nil {
		r.failures = map[string]int{}
	}
	r.failures[kind]++
	if panicked {
		r.panics++
	}
}

func TestFailureHandler_HandleError(t *testing.T) {
	var buf bytes.Buffer
	recorder := &countingRecorder{}
	handler := NewFailureHandler(zerolog.New(&buf), recorder)

	job := &rivertype.JobRow{ID: 7, Kind: JobKindWelcomeEmail, Attempt: 5, MaxAttempts: 5}
	require.Nil(t, handler.HandleError(context.Background(), job, errors.New("smtp down")))

	require.Equal(t, 1, recorder.failures[JobKindWelcomeEmail])
	require.Zero(t, recorder.panics)
	require.Contains(t, buf.String(), `"discarding":true`)
	require.Contains(t, buf.String(), "smtp down")
}

func TestFailureHandler_HandlePanic(t *testing.T) {
	var buf bytes.Buffer
	recorder := &countingRecorder{}
	handler := NewFailureHandler(zerolog.New(&buf), recorder)

	job := &rivertype.JobRow{ID: 8, Kind: JobKindWelcomeEmail, Attempt: 1, MaxAttempts: 5}
	require.Nil(t, handler.HandlePanic(context.Background(), job, "nil map", "goroutine 1"))

	require.Equal(t, 1, recorder.panics)
	require.Contains(t, buf.String(), "job panicked")
	require.NotContains(t, buf.String(), "discarding")
}

func TestFailureHandler_NilRecorder(t *testing.T) {
	handler := NewFailureHandler(zerolog.Nop(), nil)
	require.NotPanics(t, func() {
		handler.HandleError(context.Background(), &rivertype.JobRow{Kind: "x"}, errors.New("x"))
	})
}
