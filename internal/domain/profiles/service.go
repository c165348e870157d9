package profiles

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/devconnector/internal/domain/ids"
	"github.com/Togather-Foundation/devconnector/internal/sanitize"
	"github.com/Togather-Foundation/devconnector/internal/validation"
)

// Input is the create-or-update form. Empty scalars leave stored values alone.
type Input struct {
	Company        string `json:"company"`
	Website        string `json:"website" validate:"omitempty,httpurl" msg:"Please include a valid website URL"`
	Location       string `json:"location"`
	Bio            string `json:"bio"`
	Status         string `json:"status" validate:"required" msg:"Status is required"`
	GitHubUsername string `json:"githubusername"`
	Skills         string `json:"skills" validate:"required" msg:"Skills is required"`
	YouTube        string `json:"youtube" validate:"omitempty,httpurl" msg:"Please include a valid YouTube URL"`
	Twitter        string `json:"twitter" validate:"omitempty,httpurl" msg:"Please include a valid Twitter URL"`
	Facebook       string `json:"facebook" validate:"omitempty,httpurl" msg:"Please include a valid Facebook URL"`
	LinkedIn       string `json:"linkedin" validate:"omitempty,httpurl" msg:"Please include a valid LinkedIn URL"`
	Instagram      string `json:"instagram" validate:"omitempty,httpurl" msg:"Please include a valid Instagram URL"`
}

type ExperienceInput struct {
	Title       string `json:"title" validate:"required" msg:"Title is required"`
	Company     string `json:"company" validate:"required" msg:"Company is required"`
	Location    string `json:"location"`
	From        string `json:"from" validate:"required" msg:"From date is required"`
	To          string `json:"to"`
	Current     bool   `json:"current"`
	Description string `json:"description"`
}

type EducationInput struct {
	School       string `json:"school" validate:"required" msg:"School is required"`
	Degree       string `json:"degree" validate:"required" msg:"Degree is required"`
	FieldOfStudy string `json:"fieldofstudy" validate:"required" msg:"Field of study is required"`
	From         string `json:"from" validate:"required" msg:"From date is required"`
	To           string `json:"to"`
	Current      bool   `json:"current"`
	Description  string `json:"description"`
}

type Service struct {
	repo      Repository
	validator *validation.Validator
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: validation.New(),
		logger:    logger.With().Str("component", "profiles").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) GetMine(ctx context.Context, userID string) (*Profile, error) {
	return s.repo.GetByUser(ctx, userID)
}

// GetByUser treats malformed ids as unknown.
func (s *Service) GetByUser(ctx context.Context, userID string) (*Profile, error) {
	if !ids.IsULID(userID) {
		return nil, ErrNotFound
	}
	return s.repo.GetByUser(ctx, ids.Normalize(userID))
}

func (s *Service) List(ctx context.Context) ([]Profile, error) {
	return s.repo.List(ctx)
}

// Upsert creates the caller's profile or merges in into the existing one.
func (s *Service) Upsert(ctx context.Context, userID string, in Input) (*Profile, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	skills := sanitize.CommaList(in.Skills)
	if len(skills) == 0 {
		return nil, validation.Errors{{Param: "skills", Msg: "Skills is required"}}
	}

	now := s.now()
	profile, err := s.repo.Upsert(ctx, userID, func(p *Profile) error {
		if p.ID == "" {
			id, err := ids.NewULID()
			if err != nil {
				return fmt.Errorf("mint profile id: %w", err)
			}
			p.ID = id
			p.UserID = userID
			p.CreatedAt = now
		}
		applyInput(p, in, skills)
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("user_id", userID).Str("profile_id", profile.ID).Msg("profile saved")
	return profile, nil
}

func applyInput(p *Profile, in Input, skills []string) {
	setIfPresent(&p.Company, in.Company)
	setIfPresent(&p.Website, in.Website)
	setIfPresent(&p.Location, in.Location)
	setIfPresent(&p.Bio, in.Bio)
	setIfPresent(&p.Status, in.Status)
	setIfPresent(&p.GitHubUsername, in.GitHubUsername)
	p.Skills = skills

	social := Social{
		YouTube:   in.YouTube,
		Twitter:   in.Twitter,
		Facebook:  in.Facebook,
		LinkedIn:  in.LinkedIn,
		Instagram: in.Instagram,
	}
	// The social object is replaced as a whole on every save.
	p.Social = &social
}

func setIfPresent(dst *string, value string) {
	if v := sanitize.Text(value); v != "" {
		*dst = v
	}
}

func (s *Service) AddExperience(ctx context.Context, userID string, in ExperienceInput) (*Profile, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	from, to, err := parseRange(in.From, in.To, in.Current)
	if err != nil {
		return nil, err
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("mint experience id: %w", err)
	}
	entry := Experience{
		ID:          id,
		Title:       sanitize.Text(in.Title),
		Company:     sanitize.Text(in.Company),
		Location:    sanitize.Text(in.Location),
		From:        from,
		To:          to,
		Current:     in.Current,
		Description: sanitize.Text(in.Description),
	}

	return s.repo.Update(ctx, userID, func(p *Profile) error {
		p.Experience = append([]Experience{entry}, p.Experience...)
		p.UpdatedAt = s.now()
		return nil
	})
}

// DeleteExperience removes exactly the entry with expID.
func (s *Service) DeleteExperience(ctx context.Context, userID, expID string) (*Profile, error) {
	return s.repo.Update(ctx, userID, func(p *Profile) error {
		idx := indexOf(len(p.Experience), func(i int) bool { return p.Experience[i].ID == ids.Normalize(expID) })
		if idx < 0 {
			return ErrEntryNotFound
		}
		p.Experience = append(p.Experience[:idx], p.Experience[idx+1:]...)
		p.UpdatedAt = s.now()
		return nil
	})
}

func (s *Service) AddEducation(ctx context.Context, userID string, in EducationInput) (*Profile, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	from, to, err := parseRange(in.From, in.To, in.Current)
	if err != nil {
		return nil, err
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("mint education id: %w", err)
	}
	entry := Education{
		ID:           id,
		School:       sanitize.Text(in.School),
		Degree:       sanitize.Text(in.Degree),
		FieldOfStudy: sanitize.Text(in.FieldOfStudy),
		From:         from,
		To:           to,
		Current:      in.Current,
		Description:  sanitize.Text(in.Description),
	}

	return s.repo.Update(ctx, userID, func(p *Profile) error {
		p.Education = append([]Education{entry}, p.Education...)
		p.UpdatedAt = s.now()
		return nil
	})
}

func (s *Service) DeleteEducation(ctx context.Context, userID, eduID string) (*Profile, error) {
	return s.repo.Update(ctx, userID, func(p *Profile) error {
		idx := indexOf(len(p.Education), func(i int) bool { return p.Education[i].ID == ids.Normalize(eduID) })
		if idx < 0 {
			return ErrEntryNotFound
		}
		p.Education = append(p.Education[:idx], p.Education[idx+1:]...)
		p.UpdatedAt = s.now()
		return nil
	})
}

// parseRange normalizes from/to. A current entry has no end date.
func parseRange(fromRaw, toRaw string, current bool) (time.Time, *time.Time, error) {
	from, err := ParseDate(fromRaw)
	if err != nil {
		return time.Time{}, nil, validation.Errors{{Param: "from", Msg: "From date is not a valid date"}}
	}
	if current || toRaw == "" {
		return from, nil, nil
	}

	to, err := ParseDate(toRaw)
	if err != nil {
		return time.Time{}, nil, validation.Errors{{Param: "to", Msg: "To date is not a valid date"}}
	}
	if to.Before(from) {
		return time.Time{}, nil, validation.Errors{{Param: "to", Msg: "To date must not be before from date"}}
	}
	return from, &to, nil
}

func indexOf(n int, match func(i int) bool) int {
	for i := 0; i < n; i++ {
		if match(i) {
			return i
		}
	}
	return -1
}
