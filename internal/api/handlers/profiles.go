package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Togather-Foundation/devconnector/internal/api/problem"
	"github.com/Togather-Foundation/devconnector/internal/audit"
	"github.com/Togather-Foundation/devconnector/internal/domain/profiles"
	"github.com/Togather-Foundation/devconnector/internal/domain/users"
	"github.com/Togather-Foundation/devconnector/internal/github"
	"github.com/Togather-Foundation/devconnector/internal/metrics"
	"github.com/Togather-Foundation/devconnector/internal/validation"
)

const (
	msgNoProfile       = "There is no profile for this user"
	msgProfileNotFound = "Profile not found"
	msgNoGitHubProfile = "No Github profile found"
)

// RepoLister fetches a GitHub user's recent public repositories.
type RepoLister interface {
	Repos(ctx context.Context, username string) (json.RawMessage, error)
}

type ProfilesHandler struct {
	Service *profiles.Service
	Users   *users.Service
	GitHub  RepoLister
	Audit   *audit.Logger
	Env     string
}

func NewProfilesHandler(service *profiles.Service, usersService *users.Service, gh RepoLister, auditLogger *audit.Logger, env string) *ProfilesHandler {
	return &ProfilesHandler{Service: service, Users: usersService, GitHub: gh, Audit: auditLogger, Env: env}
}

// Me handles GET /api/profile/me.
func (h *ProfilesHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	profile, err := h.Service.GetMine(r.Context(), userID)
	if err != nil {
		h.writeProfileError(w, r, err, msgNoProfile)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Save handles POST /api/profile.
func (h *ProfilesHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in profiles.Input
	if err := decodeJSON(r, &in); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	profile, err := h.Service.Upsert(r.Context(), userID, in)
	if err != nil {
		h.writeProfileError(w, r, err, msgNoProfile)
		return
	}

	metrics.ProfilesSaved.Inc()
	writeJSON(w, http.StatusOK, profile)
}

// List handles GET /api/profile.
func (h *ProfilesHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context())
	if err != nil {
		writeServerError(w, r, err, h.Env)
		return
	}
	if items == nil {
		items = []profiles.Profile{}
	}
	writeJSON(w, http.StatusOK, items)
}

// ByUser handles GET /api/profile/user/{user_id}.
func (h *ProfilesHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Service.GetByUser(r.Context(), pathParam(r, "user_id"))
	if err != nil {
		h.writeProfileError(w, r, err, msgProfileNotFound)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// DeleteAccount handles DELETE /api/profile: the user's posts, profile and
// account go in one transaction.
func (h *ProfilesHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	res, err := h.Users.DeleteAccount(r.Context(), userID)
	if err != nil {
		h.Audit.LogFromRequest(r, userID, "account.delete", "user", userID, audit.StatusFailure, nil)
		if errors.Is(err, users.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "User not found", nil, h.Env)
			return
		}
		writeServerError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, userID, "account.delete", "user", userID, audit.StatusSuccess, map[string]string{
		"posts_removed":   strconv.FormatInt(res.Posts, 10),
		"profile_removed": strconv.FormatBool(res.Profile),
	})
	metrics.AccountsDeleted.Inc()
	writeJSON(w, http.StatusOK, msgResponse{Msg: "User deleted"})
}

// AddExperience handles PUT /api/profile/experience.
func (h *ProfilesHandler) AddExperience(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in profiles.ExperienceInput
	if err := decodeJSON(r, &in); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	profile, err := h.Service.AddExperience(r.Context(), userID, in)
	if err != nil {
		h.writeProfileError(w, r, err, msgNoProfile)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// DeleteExperience handles DELETE /api/profile/experience/{exp_id}.
func (h *ProfilesHandler) DeleteExperience(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	profile, err := h.Service.DeleteExperience(r.Context(), userID, pathParam(r, "exp_id"))
	if err != nil {
		if errors.Is(err, profiles.ErrEntryNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Experience not found", nil, h.Env)
			return
		}
		h.writeProfileError(w, r, err, msgNoProfile)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// AddEducation handles PUT /api/profile/education.
func (h *ProfilesHandler) AddEducation(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in profiles.EducationInput
	if err := decodeJSON(r, &in); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	profile, err := h.Service.AddEducation(r.Context(), userID, in)
	if err != nil {
		h.writeProfileError(w, r, err, msgNoProfile)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// DeleteEducation handles DELETE /api/profile/education/{edu_id}.
func (h *ProfilesHandler) DeleteEducation(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	profile, err := h.Service.DeleteEducation(r.Context(), userID, pathParam(r, "edu_id"))
	if err != nil {
		if errors.Is(err, profiles.ErrEntryNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Education not found", nil, h.Env)
			return
		}
		h.writeProfileError(w, r, err, msgNoProfile)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// GitHubRepos handles GET /api/profile/github/{username}. The upstream body
// is passed through untouched.
func (h *ProfilesHandler) GitHubRepos(w http.ResponseWriter, r *http.Request) {
	if h.GitHub == nil {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, msgNoGitHubProfile, nil, h.Env)
		return
	}

	repos, err := h.GitHub.Repos(r.Context(), pathParam(r, "username"))
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			metrics.GitHubRequests.WithLabelValues("not_found").Inc()
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, msgNoGitHubProfile, nil, h.Env)
			return
		}
		metrics.GitHubRequests.WithLabelValues("error").Inc()
		problem.Write(w, r, http.StatusBadGateway, problem.TypeUpstream, "Server Error", err, h.Env)
		return
	}

	metrics.GitHubRequests.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(repos)
}

// writeProfileError maps service errors; notFoundMsg is the message the
// route reports for a missing profile.
func (h *ProfilesHandler) writeProfileError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	if errs, ok := validation.AsErrors(err); ok {
		writeValidation(w, r, errs, h.Env)
		return
	}
	if errors.Is(err, profiles.ErrNotFound) {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeBadRequest, notFoundMsg, nil, h.Env)
		return
	}
	writeServerError(w, r, err, h.Env)
}
