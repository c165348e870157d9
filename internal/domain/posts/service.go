package posts

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/devconnector/internal/domain/ids"
	"github.com/Togather-Foundation/devconnector/internal/domain/users"
	"github.com/Togather-Foundation/devconnector/internal/sanitize"
	"github.com/Togather-Foundation/devconnector/internal/validation"
)

const MaxPageSize = 200

type TextInput struct {
	Text string `json:"text" validate:"required" msg:"Text is required"`
}

// Authors resolves the caller so their name and avatar can be copied onto
// posts and comments.
type Authors interface {
	GetByID(ctx context.Context, id string) (*users.User, error)
}

type Service struct {
	repo      Repository
	authors   Authors
	validator *validation.Validator
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, authors Authors, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		authors:   authors,
		validator: validation.New(),
		logger:    logger.With().Str("component", "posts").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, userID string, in TextInput) (*Post, error) {
	in.Text = sanitize.Text(in.Text)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	author, err := s.authors.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("mint post id: %w", err)
	}
	post := &Post{
		ID:        id,
		UserID:    author.ID,
		Text:      in.Text,
		Name:      author.Name,
		Avatar:    author.Avatar,
		Likes:     []Like{},
		Comments:  []Comment{},
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.logger.Debug().Str("post_id", post.ID).Str("user_id", userID).Msg("post created")
	return post, nil
}

// List returns posts newest first. A zero Limit means everything.
func (s *Service) List(ctx context.Context, page Pagination) (ListResult, error) {
	if page.Limit < 0 {
		page.Limit = 0
	}
	if page.Limit > MaxPageSize {
		page.Limit = MaxPageSize
	}
	return s.repo.List(ctx, page)
}

func (s *Service) Get(ctx context.Context, id string) (*Post, error) {
	if !ids.IsULID(id) {
		return nil, ErrNotFound
	}
	return s.repo.Get(ctx, ids.Normalize(id))
}

// Delete removes a post owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if !ids.IsULID(id) {
		return ErrNotFound
	}
	err := s.repo.Delete(ctx, ids.Normalize(id), func(p *Post) error {
		if p.UserID != userID {
			return ErrNotAuthorized
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug().Str("post_id", id).Str("user_id", userID).Msg("post removed")
	return nil
}

// Like prepends a like from userID and returns the resulting likes.
func (s *Service) Like(ctx context.Context, userID, id string) ([]Like, error) {
	if !ids.IsULID(id) {
		return nil, ErrNotFound
	}
	likeID, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("mint like id: %w", err)
	}

	post, err := s.repo.Update(ctx, ids.Normalize(id), func(p *Post) error {
		if likeIndex(p.Likes, userID) >= 0 {
			return ErrAlreadyLiked
		}
		p.Likes = append([]Like{{ID: likeID, UserID: userID}}, p.Likes...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post.Likes, nil
}

// Unlike removes the like left by userID and returns the remaining likes.
func (s *Service) Unlike(ctx context.Context, userID, id string) ([]Like, error) {
	if !ids.IsULID(id) {
		return nil, ErrNotFound
	}
	post, err := s.repo.Update(ctx, ids.Normalize(id), func(p *Post) error {
		idx := likeIndex(p.Likes, userID)
		if idx < 0 {
			return ErrNotLiked
		}
		p.Likes = append(p.Likes[:idx], p.Likes[idx+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post.Likes, nil
}

// Comment prepends a comment by userID and returns all comments.
func (s *Service) Comment(ctx context.Context, userID, id string, in TextInput) ([]Comment, error) {
	in.Text = sanitize.Text(in.Text)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	if !ids.IsULID(id) {
		return nil, ErrNotFound
	}

	author, err := s.authors.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	commentID, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("mint comment id: %w", err)
	}
	comment := Comment{
		ID:        commentID,
		UserID:    author.ID,
		Text:      in.Text,
		Name:      author.Name,
		Avatar:    author.Avatar,
		CreatedAt: s.now(),
	}

	post, err := s.repo.Update(ctx, ids.Normalize(id), func(p *Post) error {
		p.Comments = append([]Comment{comment}, p.Comments...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post.Comments, nil
}

// DeleteComment removes commentID if userID wrote it.
func (s *Service) DeleteComment(ctx context.Context, userID, id, commentID string) ([]Comment, error) {
	if !ids.IsULID(id) {
		return nil, ErrNotFound
	}
	target := ids.Normalize(commentID)

	post, err := s.repo.Update(ctx, ids.Normalize(id), func(p *Post) error {
		idx := -1
		for i, c := range p.Comments {
			if c.ID == target {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrCommentNotFound
		}
		if p.Comments[idx].UserID != userID {
			return ErrNotAuthorized
		}
		p.Comments = append(p.Comments[:idx], p.Comments[idx+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post.Comments, nil
}

func likeIndex(likes []Like, userID string) int {
	for i, l := range likes {
		if l.UserID == userID {
			return i
		}
	}
	return -1
}
