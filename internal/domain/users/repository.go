package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is an account. The password hash is never serialized.
type User struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Avatar       string    `json:"avatar"`
	CreatedAt    time.Time `json:"date"`
}

// Summary is the public slice of a user embedded in other documents.
type Summary struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

// DeleteResult reports what an account deletion removed.
type DeleteResult struct {
	Posts   int64
	Profile bool
}

type Repository interface {
	// Create returns ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// DeleteAccount removes the user's posts, profile and user row atomically.
	DeleteAccount(ctx context.Context, id string) (DeleteResult, error)
}

// Notifier is told about new accounts, e.g. to queue a welcome email.
type Notifier interface {
	UserRegistered(ctx context.Context, user User) error
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Generate(userID string) (string, error)
}
