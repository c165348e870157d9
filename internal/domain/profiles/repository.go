package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/Togather-Foundation/devconnector/internal/domain/users"
)

var (
	ErrNotFound      = errors.New("profile not found")
	ErrEntryNotFound = errors.New("profile entry not found")
)

type Social struct {
	YouTube   string `json:"youtube,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	Instagram string `json:"instagram,omitempty"`
}

type Experience struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location,omitempty"`
	From        time.Time  `json:"from"`
	To          *time.Time `json:"to"`
	Current     bool       `json:"current"`
	Description string     `json:"description,omitempty"`
}

type Education struct {
	ID           string     `json:"_id"`
	School       string     `json:"school"`
	Degree       string     `json:"degree"`
	FieldOfStudy string     `json:"fieldofstudy"`
	From         time.Time  `json:"from"`
	To           *time.Time `json:"to"`
	Current      bool       `json:"current"`
	Description  string     `json:"description,omitempty"`
}

// Profile is the per-user document. User is populated from the users
// collection on read; UserID is the stored reference.
type Profile struct {
	ID             string        `json:"_id"`
	UserID         string        `json:"-"`
	User           users.Summary `json:"user"`
	Company        string        `json:"company,omitempty"`
	Website        string        `json:"website,omitempty"`
	Location       string        `json:"location,omitempty"`
	Status         string        `json:"status"`
	Skills         []string      `json:"skills"`
	Bio            string        `json:"bio,omitempty"`
	GitHubUsername string        `json:"githubusername,omitempty"`
	Social         *Social       `json:"social,omitempty"`
	Experience     []Experience  `json:"experience"`
	Education      []Education   `json:"education"`
	CreatedAt      time.Time     `json:"date"`
	UpdatedAt      time.Time     `json:"-"`
}

// MutateFunc edits a profile in place while its row is locked. Returning an
// error aborts the write.
type MutateFunc func(p *Profile) error

type Repository interface {
	GetByUser(ctx context.Context, userID string) (*Profile, error)
	List(ctx context.Context) ([]Profile, error)
	// Upsert locks the user's profile, or starts from a fresh one when none
	// exists, and persists whatever fn leaves behind.
	Upsert(ctx context.Context, userID string, fn MutateFunc) (*Profile, error)
	// Update locks an existing profile; ErrNotFound when the user has none.
	Update(ctx context.Context, userID string, fn MutateFunc) (*Profile, error)
}
