// Package memory holds in-process implementations of the domain
// repositories. Handler and service tests use it in place of Postgres.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/Togather-Foundation/devconnector/internal/domain/posts"
	"github.com/Togather-Foundation/devconnector/internal/domain/profiles"
	"github.com/Togather-Foundation/devconnector/internal/domain/users"
	"github.com/Togather-Foundation/devconnector/internal/storage"
)

// Store keeps all three collections behind one lock, so every mutation is
// serialized the way a row lock would serialize it.
type Store struct {
	mu       sync.Mutex
	users    map[string]users.User
	profiles map[string]profiles.Profile // keyed by user id
	posts    map[string]posts.Post
}

func NewStore() *Store {
	return &Store{
		users:    map[string]users.User{},
		profiles: map[string]profiles.Profile{},
		posts:    map[string]posts.Post{},
	}
}

var _ storage.Repository = (*Store)(nil)

func (s *Store) Users() users.Repository       { return &UserRepository{s: s} }
func (s *Store) Profiles() profiles.Repository { return &ProfileRepository{s: s} }
func (s *Store) Posts() posts.Repository       { return &PostRepository{s: s} }

type UserRepository struct{ s *Store }

func (r *UserRepository) Create(_ context.Context, user *users.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return users.ErrEmailTaken
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*users.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*users.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, users.ErrNotFound
}

func (r *UserRepository) DeleteAccount(_ context.Context, id string) (users.DeleteResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return users.DeleteResult{}, users.ErrNotFound
	}

	var res users.DeleteResult
	for pid, p := range r.s.posts {
		if p.UserID == id {
			delete(r.s.posts, pid)
			res.Posts++
		}
	}
	if _, ok := r.s.profiles[id]; ok {
		delete(r.s.profiles, id)
		res.Profile = true
	}
	delete(r.s.users, id)
	return res, nil
}

type ProfileRepository struct{ s *Store }

func (r *ProfileRepository) GetByUser(_ context.Context, userID string) (*profiles.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[userID]
	if !ok {
		return nil, profiles.ErrNotFound
	}
	out := r.populate(cloneProfile(p))
	return &out, nil
}

func (r *ProfileRepository) List(_ context.Context) ([]profiles.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]profiles.Profile, 0, len(r.s.profiles))
	for _, p := range r.s.profiles {
		out = append(out, r.populate(cloneProfile(p)))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ProfileRepository) Upsert(_ context.Context, userID string, fn profiles.MutateFunc) (*profiles.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[userID]
	if !ok {
		p = profiles.Profile{UserID: userID, Skills: []string{}, Experience: []profiles.Experience{}, Education: []profiles.Education{}}
	}
	return r.apply(userID, cloneProfile(p), fn)
}

func (r *ProfileRepository) Update(_ context.Context, userID string, fn profiles.MutateFunc) (*profiles.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[userID]
	if !ok {
		return nil, profiles.ErrNotFound
	}
	return r.apply(userID, cloneProfile(p), fn)
}

func (r *ProfileRepository) apply(userID string, p profiles.Profile, fn profiles.MutateFunc) (*profiles.Profile, error) {
	if err := fn(&p); err != nil {
		return nil, err
	}
	p.UserID = userID
	r.s.profiles[userID] = cloneProfile(p)
	out := r.populate(p)
	return &out, nil
}

func (r *ProfileRepository) populate(p profiles.Profile) profiles.Profile {
	p.User = users.Summary{ID: p.UserID}
	if u, ok := r.s.users[p.UserID]; ok {
		p.User = u.Summary()
	}
	return p
}

type PostRepository struct{ s *Store }

func (r *PostRepository) Create(_ context.Context, post *posts.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.posts[post.ID] = clonePost(*post)
	return nil
}

func (r *PostRepository) Get(_ context.Context, id string) (*posts.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, posts.ErrNotFound
	}
	out := clonePost(p)
	return &out, nil
}

func (r *PostRepository) List(_ context.Context, page posts.Pagination) (posts.ListResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	all := make([]posts.Post, 0, len(r.s.posts))
	for _, p := range r.s.posts {
		if page.After != nil && !before(p, *page.After) {
			continue
		}
		all = append(all, clonePost(p))
	}
	sort.Slice(all, func(i, j int) bool {
		return before(all[j], posts.Cursor{CreatedAt: all[i].CreatedAt, ID: all[i].ID})
	})

	if page.Limit == 0 || len(all) <= page.Limit {
		return posts.ListResult{Posts: all}, nil
	}
	last := all[page.Limit-1]
	return posts.ListResult{
		Posts: all[:page.Limit],
		Next:  &posts.Cursor{CreatedAt: last.CreatedAt, ID: last.ID},
	}, nil
}

// before reports whether p sorts after the cursor in newest-first order.
func before(p posts.Post, c posts.Cursor) bool {
	if p.CreatedAt.Equal(c.CreatedAt) {
		return p.ID < c.ID
	}
	return p.CreatedAt.Before(c.CreatedAt)
}

func (r *PostRepository) Update(_ context.Context, id string, fn posts.MutateFunc) (*posts.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, posts.ErrNotFound
	}
	p = clonePost(p)
	if err := fn(&p); err != nil {
		return nil, err
	}
	r.s.posts[id] = clonePost(p)
	return &p, nil
}

func (r *PostRepository) Delete(_ context.Context, id string, check func(p *posts.Post) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return posts.ErrNotFound
	}
	if check != nil {
		if err := check(&p); err != nil {
			return err
		}
	}
	delete(r.s.posts, id)
	return nil
}

func cloneProfile(p profiles.Profile) profiles.Profile {
	p.Skills = slices.Clone(p.Skills)
	p.Experience = slices.Clone(p.Experience)
	p.Education = slices.Clone(p.Education)
	if p.Social != nil {
		social := *p.Social
		p.Social = &social
	}
	return p
}

func clonePost(p posts.Post) posts.Post {
	p.Likes = slices.Clone(p.Likes)
	p.Comments = slices.Clone(p.Comments)
	if p.Likes == nil {
		p.Likes = []posts.Like{}
	}
	if p.Comments == nil {
		p.Comments = []posts.Comment{}
	}
	return p
}
