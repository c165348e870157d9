package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/devconnector/internal/api/middleware"
	"github.com/Togather-Foundation/devconnector/internal/api/problem"
	"github.com/Togather-Foundation/devconnector/internal/validation"
)

var errEmptyBody = errors.New("empty request body")

type msgResponse struct {
	Msg string `json:"msg"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.PathValue(key))
}

// decodeJSON reads a single JSON object into dst. An empty body decodes to
// the zero value so validation can report the missing fields.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// writeDecodeError answers a body that could not be read.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Request body too large", err, env)
		return
	}
	problem.Write(w, r, http.StatusBadRequest, problem.TypeBadRequest, "Invalid JSON body", err, env)
}

// writeValidation sends field errors the way the client renders form alerts.
// The first message doubles as the title.
func writeValidation(w http.ResponseWriter, r *http.Request, errs validation.Errors, env string) {
	items := make([]problem.FieldError, 0, len(errs))
	for _, fe := range errs {
		items = append(items, problem.FieldError{Param: fe.Param, Msg: fe.Msg})
	}
	title := "Invalid request"
	if len(items) > 0 {
		title = items[0].Msg
	}
	problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, title, nil, env, problem.WithErrors(items))
}

// writeFormError reports a single form-level message (bad credentials,
// duplicate account) in the same shape as a validation failure.
func writeFormError(w http.ResponseWriter, r *http.Request, msg string, err error, env string) {
	problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, msg, err, env,
		problem.WithErrors([]problem.FieldError{{Msg: msg}}))
}

func writeServerError(w http.ResponseWriter, r *http.Request, err error, env string) {
	problem.Write(w, r, http.StatusInternalServerError, problem.TypeServer, "Server Error", err, env)
}

// currentUser returns the id RequireAuth attached. Routes registered without
// it are a wiring bug, answered as unauthorized.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "No token, authorization denied", nil, "")
		return "", false
	}
	return userID, true
}
