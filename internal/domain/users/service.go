package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Togather-Foundation/devconnector/internal/domain/ids"
	"github.com/Togather-Foundation/devconnector/internal/sanitize"
	"github.com/Togather-Foundation/devconnector/internal/validation"
)

// BcryptCost matches the salt rounds accounts were originally hashed with.
const BcryptCost = 10

type RegisterInput struct {
	Name     string `json:"name" validate:"required" msg:"Name is required"`
	Email    string `json:"email" validate:"required,email" msg:"Please include a valid email"`
	Password string `json:"password" validate:"min=6,maxbytes=72" msg:"Please enter a password with 6 or more characters" msg_maxbytes:"Password must be at most 72 bytes"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email" msg:"Please include a valid email"`
	Password string `json:"password" validate:"required" msg:"Password is required"`
}

type Service struct {
	repo       Repository
	tokens     TokenIssuer
	notifier   Notifier
	validator  *validation.Validator
	logger     zerolog.Logger
	bcryptCost int
	// dummyHash keeps login timing flat when the email is unknown.
	dummyHash []byte
}

type Option func(*Service)

// WithBcryptCost overrides BcryptCost, mostly so tests can use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func NewService(repo Repository, tokens TokenIssuer, notifier Notifier, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		tokens:     tokens,
		notifier:   notifier,
		validator:  validation.New(),
		logger:     logger.With().Str("component", "users").Logger(),
		bcryptCost: BcryptCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("devconnector-dummy-password"), s.bcryptCost)
	return s
}

// Register creates an account and returns a session token for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, *User, error) {
	in.Name = sanitize.Text(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := s.validator.Struct(in); err != nil {
		return "", nil, err
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return "", nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return "", nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := ids.NewULID()
	if err != nil {
		return "", nil, fmt.Errorf("mint user id: %w", err)
	}

	user := &User{
		ID:           id,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Avatar:       GravatarURL(in.Email),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return "", nil, ErrEmailTaken
		}
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.UserRegistered(ctx, *user); err != nil {
			s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("welcome notification not queued")
		}
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return token, user, nil
}

// Authenticate checks credentials and returns a session token. Unknown emails
// and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, in LoginInput) (string, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.validator.Struct(in); err != nil {
		return "", err
	}

	user, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(in.Password))
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	if !ids.IsULID(id) {
		return nil, ErrNotFound
	}
	return s.repo.GetByID(ctx, ids.Normalize(id))
}

// DeleteAccount removes the user together with their profile and posts.
func (s *Service) DeleteAccount(ctx context.Context, id string) (DeleteResult, error) {
	if !ids.IsULID(id) {
		return DeleteResult{}, ErrNotFound
	}
	res, err := s.repo.DeleteAccount(ctx, ids.Normalize(id))
	if err != nil {
		return DeleteResult{}, err
	}
	s.logger.Info().Str("user_id", id).Int64("posts", res.Posts).Bool("profile", res.Profile).Msg("account deleted")
	return res, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
