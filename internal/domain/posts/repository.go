package posts

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment does not exist")
	ErrNotAuthorized   = errors.New("user not authorized")
	ErrAlreadyLiked    = errors.New("post already liked")
	ErrNotLiked        = errors.New("post has not yet been liked")
)

type Like struct {
	ID     string `json:"_id"`
	UserID string `json:"user"`
}

type Comment struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"user"`
	Text      string    `json:"text"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"date"`
}

// Post carries a snapshot of the author's name and avatar taken at write time.
type Post struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"user"`
	Text      string    `json:"text"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	Likes     []Like    `json:"likes"`
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"date"`
}

// Cursor marks the last post of a page in (date desc, id desc) order.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Pagination with Limit 0 returns every post.
type Pagination struct {
	Limit int
	After *Cursor
}

type ListResult struct {
	Posts []Post
	Next  *Cursor
}

type MutateFunc func(p *Post) error

type Repository interface {
	Create(ctx context.Context, post *Post) error
	Get(ctx context.Context, id string) (*Post, error)
	List(ctx context.Context, page Pagination) (ListResult, error)
	// Update locks the post row for the duration of fn.
	Update(ctx context.Context, id string, fn MutateFunc) (*Post, error)
	// Delete locks the post, lets check veto the delete, then removes it.
	Delete(ctx context.Context, id string, check func(p *Post) error) error
}
