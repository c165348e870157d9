package storage

import (
	"github.com/Togather-Foundation/devconnector/internal/domain/posts"
	"github.com/Togather-Foundation/devconnector/internal/domain/profiles"
	"github.com/Togather-Foundation/devconnector/internal/domain/users"
)

// Repository groups data access by collection.
type Repository interface {
	Users() users.Repository
	Profiles() profiles.Repository
	Posts() posts.Repository
}
