package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/devconnector/internal/domain/profiles"
	"github.com/Togather-Foundation/devconnector/internal/domain/users"
)

type ProfileRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

// maxUpsertAttempts bounds retries when two first saves race on user_id.
const maxUpsertAttempts = 3

var errConcurrentCreate = errors.New("profile created concurrently")

const selectProfile = `
SELECT p.id, p.user_id, COALESCE(u.name, ''), COALESCE(u.avatar, ''),
       p.company, p.website, p.location, p.status, p.bio, p.github_username,
       p.skills, p.social, p.experience, p.education, p.created_at, p.updated_at
  FROM profiles p
  LEFT JOIN users u ON u.id = p.user_id`

func (r *ProfileRepository) queryer() queryer {
	return pick(r.pool, r.tx)
}

func (r *ProfileRepository) GetByUser(ctx context.Context, userID string) (*profiles.Profile, error) {
	return getProfile(ctx, r.queryer(), userID, false)
}

func (r *ProfileRepository) List(ctx context.Context) ([]profiles.Profile, error) {
	rows, err := r.queryer().Query(ctx, selectProfile+` ORDER BY p.created_at, p.id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := []profiles.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, userID string, fn profiles.MutateFunc) (*profiles.Profile, error) {
	for attempt := 0; ; attempt++ {
		p, err := r.mutate(ctx, userID, true, fn)
		if errors.Is(err, errConcurrentCreate) && attempt+1 < maxUpsertAttempts {
			continue
		}
		return p, err
	}
}

func (r *ProfileRepository) Update(ctx context.Context, userID string, fn profiles.MutateFunc) (*profiles.Profile, error) {
	return r.mutate(ctx, userID, false, fn)
}

func (r *ProfileRepository) mutate(ctx context.Context, userID string, create bool, fn profiles.MutateFunc) (*profiles.Profile, error) {
	var out *profiles.Profile
	err := inTx(ctx, r.pool, r.tx, "mutate_profile", func(tx pgx.Tx) error {
		current, err := getProfile(ctx, tx, userID, true)
		exists := err == nil
		switch {
		case errors.Is(err, profiles.ErrNotFound) && create:
			current = &profiles.Profile{UserID: userID, Skills: []string{}, Experience: []profiles.Experience{}, Education: []profiles.Education{}}
		case err != nil:
			return err
		}

		if err := fn(current); err != nil {
			return err
		}
		current.UserID = userID
		current.CreatedAt = dbTime(current.CreatedAt)
		current.UpdatedAt = dbTime(current.UpdatedAt)

		if exists {
			err = updateProfile(ctx, tx, current)
		} else {
			err = insertProfile(ctx, tx, current)
		}
		if err != nil {
			return err
		}

		out, err = getProfile(ctx, tx, userID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func getProfile(ctx context.Context, q queryer, userID string, lock bool) (*profiles.Profile, error) {
	sql := selectProfile + ` WHERE p.user_id = $1`
	if lock {
		sql += ` FOR UPDATE OF p`
	}
	p, err := scanProfile(q.QueryRow(ctx, sql, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profiles.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func insertProfile(ctx context.Context, q queryer, p *profiles.Profile) error {
	social, experience, education, err := encodeProfileDocs(p)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `
INSERT INTO profiles (id, user_id, company, website, location, status, bio, github_username,
                      skills, social, experience, education, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (user_id) DO NOTHING`,
		p.ID, p.UserID, p.Company, p.Website, p.Location, p.Status, p.Bio, p.GitHubUsername,
		p.Skills, social, experience, education, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errConcurrentCreate
	}
	return nil
}

func updateProfile(ctx context.Context, q queryer, p *profiles.Profile) error {
	social, experience, education, err := encodeProfileDocs(p)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
UPDATE profiles
   SET company = $2, website = $3, location = $4, status = $5, bio = $6, github_username = $7,
       skills = $8, social = $9, experience = $10, education = $11, updated_at = $12
 WHERE id = $1`,
		p.ID, p.Company, p.Website, p.Location, p.Status, p.Bio, p.GitHubUsername,
		p.Skills, social, experience, education, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func encodeProfileDocs(p *profiles.Profile) (social, experience, education []byte, err error) {
	if p.Social != nil {
		if social, err = json.Marshal(p.Social); err != nil {
			return nil, nil, nil, fmt.Errorf("encode social: %w", err)
		}
	}
	if experience, err = marshalList(p.Experience); err != nil {
		return nil, nil, nil, fmt.Errorf("encode experience: %w", err)
	}
	if education, err = marshalList(p.Education); err != nil {
		return nil, nil, nil, fmt.Errorf("encode education: %w", err)
	}
	return social, experience, education, nil
}

func scanProfile(row pgx.Row) (*profiles.Profile, error) {
	var (
		p                             profiles.Profile
		name, avatar                  string
		social, experience, education []byte
	)
	err := row.Scan(
		&p.ID, &p.UserID, &name, &avatar,
		&p.Company, &p.Website, &p.Location, &p.Status, &p.Bio, &p.GitHubUsername,
		&p.Skills, &social, &experience, &education, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	p.User = users.Summary{ID: p.UserID, Name: name, Avatar: avatar}
	if len(social) > 0 {
		p.Social = &profiles.Social{}
		if err := json.Unmarshal(social, p.Social); err != nil {
			return nil, fmt.Errorf("decode social: %w", err)
		}
	}
	if err := json.Unmarshal(experience, &p.Experience); err != nil {
		return nil, fmt.Errorf("decode experience: %w", err)
	}
	if err := json.Unmarshal(education, &p.Education); err != nil {
		return nil, fmt.Errorf("decode education: %w", err)
	}
	if p.Skills == nil {
		p.Skills = []string{}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// marshalList encodes nil slices as [] to satisfy the NOT NULL jsonb columns.
func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}
