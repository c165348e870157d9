// Package problem writes RFC 7807 error bodies. Every body also carries the
// user-facing message in "msg", and validation failures list their field
// errors in "errors", which is what the single-page client reads.
package problem

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

const contentType = "application/problem+json"

// Problem type URIs.
const (
	TypeValidation   = "urn:devconnector:problem:validation"
	TypeNotFound     = "urn:devconnector:problem:not-found"
	TypeUnauthorized = "urn:devconnector:problem:unauthorized"
	TypeBadRequest   = "urn:devconnector:problem:bad-request"
	TypeRateLimited  = "urn:devconnector:problem:rate-limited"
	TypeTooLarge     = "urn:devconnector:problem:payload-too-large"
	TypeUpstream     = "urn:devconnector:problem:upstream"
	TypeServer       = "urn:devconnector:problem:server-error"
)

// FieldError is one entry of the "errors" array.
type FieldError struct {
	Param string `json:"param,omitempty"`
	Msg   string `json:"msg"`
}

type ProblemDetails struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Msg      string       `json:"msg"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

type Option func(*ProblemDetails)

func WithDetail(detail string) Option {
	return func(p *ProblemDetails) {
		p.Detail = detail
	}
}

func WithInstance(instance string) Option {
	return func(p *ProblemDetails) {
		p.Instance = instance
	}
}

func WithErrors(errs []FieldError) Option {
	return func(p *ProblemDetails) {
		p.Errors = errs
	}
}

// Write sends a problem response. Detail is filled from err only in
// development and test; 5xx causes are logged at error level and 4xx causes
// at warn level through the request logger.
func Write(w http.ResponseWriter, r *http.Request, status int, typ, title string, err error, env string, opts ...Option) {
	problem := ProblemDetails{
		Type:   typ,
		Title:  title,
		Status: status,
		Msg:    title,
	}

	for _, opt := range opts {
		opt(&problem)
	}

	if problem.Detail == "" && err != nil && (env == "development" || env == "test") {
		problem.Detail = err.Error()
	}

	if problem.Instance == "" && r != nil {
		problem.Instance = r.URL.Path
	}

	if err != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		var evt *zerolog.Event
		if status >= 500 {
			evt = logger.Error()
		} else {
			evt = logger.Warn()
		}
		evt.Err(err).
			Int("status", status).
			Str("type", typ).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(title)
	}

	WriteProblem(w, problem)
}

func WriteProblem(w http.ResponseWriter, problem ProblemDetails) {
	payload, err := json.Marshal(problem)
	if err != nil {
		fallback := fmt.Sprintf("{\"type\":%q,\"title\":%q,\"status\":500}", TypeServer, http.StatusText(http.StatusInternalServerError))
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(fallback))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(problem.Status)
	_, _ = w.Write(payload)
}
