package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/devconnector/internal/domain/users"
)

type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const userColumns = `id, name, email, password_hash, avatar, created_at`

func (r *UserRepository) queryer() queryer {
	return pick(r.pool, r.tx)
}

func (r *UserRepository) Create(ctx context.Context, user *users.User) error {
	user.CreatedAt = dbTime(user.CreatedAt)
	_, err := r.queryer().Exec(ctx, `
INSERT INTO users (id, name, email, password_hash, avatar, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Avatar, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return users.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) getOne(ctx context.Context, sql string, arg string) (*users.User, error) {
	var u users.User
	err := r.queryer().QueryRow(ctx, sql, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Avatar, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// DeleteAccount removes posts, profile and user in one transaction.
func (r *UserRepository) DeleteAccount(ctx context.Context, id string) (users.DeleteResult, error) {
	var res users.DeleteResult
	err := inTx(ctx, r.pool, r.tx, "delete_account", func(tx pgx.Tx) error {
		var locked string
		if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return users.ErrNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM posts WHERE user_id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete posts: %w", err)
		}
		res.Posts = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete profile: %w", err)
		}
		res.Profile = tag.RowsAffected() > 0

		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return users.DeleteResult{}, err
	}
	return res, nil
}
