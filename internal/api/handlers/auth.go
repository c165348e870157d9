package handlers

import (
	"errors"
	"net/http"

	"github.com/Togather-Foundation/devconnector/internal/api/problem"
	"github.com/Togather-Foundation/devconnector/internal/domain/users"
	"github.com/Togather-Foundation/devconnector/internal/metrics"
	"github.com/Togather-Foundation/devconnector/internal/validation"
)

// AuthHandler serves registration, login and the current-user lookup.
type AuthHandler struct {
	Service *users.Service
	Env     string
}

func NewAuthHandler(service *users.Service, env string) *AuthHandler {
	return &AuthHandler{Service: service, Env: env}
}

// Register handles POST /api/users.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	token, _, err := h.Service.Register(r.Context(), in)
	if err != nil {
		if errs, ok := validation.AsErrors(err); ok {
			writeValidation(w, r, errs, h.Env)
			return
		}
		if errors.Is(err, users.ErrEmailTaken) {
			writeFormError(w, r, "User already exists", nil, h.Env)
			return
		}
		writeServerError(w, r, err, h.Env)
		return
	}

	metrics.UsersRegistered.Inc()
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// Login handles POST /api/auth.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in users.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	token, err := h.Service.Authenticate(r.Context(), in)
	if err != nil {
		if errs, ok := validation.AsErrors(err); ok {
			metrics.Logins.WithLabelValues("invalid").Inc()
			writeValidation(w, r, errs, h.Env)
			return
		}
		if errors.Is(err, users.ErrInvalidCredentials) {
			metrics.Logins.WithLabelValues("rejected").Inc()
			writeFormError(w, r, "Invalid Credentials", nil, h.Env)
			return
		}
		metrics.Logins.WithLabelValues("error").Inc()
		writeServerError(w, r, err, h.Env)
		return
	}

	metrics.Logins.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// Me handles GET /api/auth.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	user, err := h.Service.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "User not found", nil, h.Env)
			return
		}
		writeServerError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
