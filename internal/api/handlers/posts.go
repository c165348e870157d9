package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/devconnector/internal/api/pagination"
	"github.com/Togather-Foundation/devconnector/internal/api/problem"
	"github.com/Togather-Foundation/devconnector/internal/domain/posts"
	"github.com/Togather-Foundation/devconnector/internal/domain/users"
	"github.com/Togather-Foundation/devconnector/internal/metrics"
	"github.com/Togather-Foundation/devconnector/internal/validation"
)

const (
	msgPostNotFound    = "Post not found"
	msgNotAuthorized   = "User not authorized"
	msgCommentNotFound = "Comment does not exist"
)

type PostsHandler struct {
	Service *posts.Service
	Env     string
}

func NewPostsHandler(service *posts.Service, env string) *PostsHandler {
	return &PostsHandler{Service: service, Env: env}
}

// Create handles POST /api/posts.
func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in posts.TextInput
	if err := decodeJSON(r, &in); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	post, err := h.Service.Create(r.Context(), userID, in)
	if err != nil {
		h.writePostError(w, r, err)
		return
	}

	metrics.PostsCreated.Inc()
	writeJSON(w, http.StatusOK, post)
}

// List handles GET /api/posts?limit=&after=. The body is always a bare
// array; the next page's cursor travels in X-Next-Cursor.
func (h *PostsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, errs := parsePagination(r)
	if len(errs) > 0 {
		writeValidation(w, r, errs, h.Env)
		return
	}

	result, err := h.Service.List(r.Context(), page)
	if err != nil {
		writeServerError(w, r, err, h.Env)
		return
	}

	if result.Next != nil {
		w.Header().Set(pagination.NextCursorHeader, pagination.Encode(result.Next.CreatedAt, result.Next.ID))
	}
	items := result.Posts
	if items == nil {
		items = []posts.Post{}
	}
	writeJSON(w, http.StatusOK, items)
}

func parsePagination(r *http.Request) (posts.Pagination, validation.Errors) {
	var page posts.Pagination
	var errs validation.Errors
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > posts.MaxPageSize {
			errs = append(errs, validation.FieldError{Param: "limit", Msg: "Limit must be between 1 and " + strconv.Itoa(posts.MaxPageSize)})
		} else {
			page.Limit = limit
		}
	}

	if raw := strings.TrimSpace(query.Get("after")); raw != "" {
		cursor, err := pagination.Decode(raw)
		if err != nil {
			errs = append(errs, validation.FieldError{Param: "after", Msg: "Invalid cursor"})
		} else {
			page.After = &posts.Cursor{CreatedAt: cursor.Timestamp, ID: cursor.ULID}
		}
	}
	return page, errs
}

// Get handles GET /api/posts/{id}.
func (h *PostsHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.Service.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		h.writePostError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /api/posts/{id}.
func (h *PostsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), userID, pathParam(r, "id")); err != nil {
		h.writePostError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgResponse{Msg: "Post removed"})
}

// Like handles PUT /api/posts/like/{id}.
func (h *PostsHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	likes, err := h.Service.Like(r.Context(), userID, pathParam(r, "id"))
	if err != nil {
		h.writePostError(w, r, err)
		return
	}
	metrics.Likes.WithLabelValues("like").Inc()
	writeJSON(w, http.StatusOK, nonNil(likes))
}

// Unlike handles PUT /api/posts/unlike/{id}.
func (h *PostsHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	likes, err := h.Service.Unlike(r.Context(), userID, pathParam(r, "id"))
	if err != nil {
		h.writePostError(w, r, err)
		return
	}
	metrics.Likes.WithLabelValues("unlike").Inc()
	writeJSON(w, http.StatusOK, nonNil(likes))
}

// Comment handles POST /api/posts/comment/{id}.
func (h *PostsHandler) Comment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in posts.TextInput
	if err := decodeJSON(r, &in); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	comments, err := h.Service.Comment(r.Context(), userID, pathParam(r, "id"), in)
	if err != nil {
		h.writePostError(w, r, err)
		return
	}
	metrics.Comments.WithLabelValues("add").Inc()
	writeJSON(w, http.StatusOK, nonNil(comments))
}

// DeleteComment handles DELETE /api/posts/comment/{id}/{comment_id}.
func (h *PostsHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	comments, err := h.Service.DeleteComment(r.Context(), userID, pathParam(r, "id"), pathParam(r, "comment_id"))
	if err != nil {
		h.writePostError(w, r, err)
		return
	}
	metrics.Comments.WithLabelValues("delete").Inc()
	writeJSON(w, http.StatusOK, nonNil(comments))
}

func (h *PostsHandler) writePostError(w http.ResponseWriter, r *http.Request, err error) {
	if errs, ok := validation.AsErrors(err); ok {
		writeValidation(w, r, errs, h.Env)
		return
	}

	switch {
	case errors.Is(err, posts.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, msgPostNotFound, nil, h.Env)
	case errors.Is(err, posts.ErrCommentNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, msgCommentNotFound, nil, h.Env)
	case errors.Is(err, posts.ErrNotAuthorized):
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, msgNotAuthorized, nil, h.Env)
	case errors.Is(err, posts.ErrAlreadyLiked):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeBadRequest, "Post already liked", nil, h.Env)
	case errors.Is(err, posts.ErrNotLiked):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeBadRequest, "Post has not yet been liked", nil, h.Env)
	case errors.Is(err, users.ErrNotFound):
		// The token outlived its account.
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "User not found", nil, h.Env)
	default:
		writeServerError(w, r, err, h.Env)
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
