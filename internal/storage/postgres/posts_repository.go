package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/devconnector/internal/domain/posts"
)

type PostRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const selectPost = `SELECT id, user_id, text, name, avatar, likes, comments, created_at FROM posts`

func (r *PostRepository) queryer() queryer {
	return pick(r.pool, r.tx)
}

func (r *PostRepository) Create(ctx context.Context, post *posts.Post) error {
	post.CreatedAt = dbTime(post.CreatedAt)
	likes, comments, err := encodePostDocs(post)
	if err != nil {
		return err
	}
	_, err = r.queryer().Exec(ctx, `
INSERT INTO posts (id, user_id, text, name, avatar, likes, comments, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		post.ID, post.UserID, post.Text, post.Name, post.Avatar, likes, comments, post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *PostRepository) Get(ctx context.Context, id string) (*posts.Post, error) {
	return getPost(ctx, r.queryer(), id, false)
}

// List pages through posts newest first, keyed on (created_at, id).
func (r *PostRepository) List(ctx context.Context, page posts.Pagination) (posts.ListResult, error) {
	var (
		afterTime *time.Time
		afterID   *string
		limit     *int
	)
	if page.After != nil {
		at := page.After.CreatedAt.UTC()
		afterTime, afterID = &at, &page.After.ID
	}
	if page.Limit > 0 {
		fetch := page.Limit + 1
		limit = &fetch
	}

	rows, err := r.queryer().Query(ctx, selectPost+`
 WHERE $1::timestamptz IS NULL OR (created_at, id) < ($1::timestamptz, $2::text)
 ORDER BY created_at DESC, id DESC
 LIMIT $3`, afterTime, afterID, limit)
	if err != nil {
		return posts.ListResult{}, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	items := []posts.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return posts.ListResult{}, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return posts.ListResult{}, fmt.Errorf("iterate posts: %w", err)
	}

	result := posts.ListResult{Posts: items}
	if page.Limit > 0 && len(items) > page.Limit {
		result.Posts = items[:page.Limit]
		last := result.Posts[len(result.Posts)-1]
		result.Next = &posts.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return result, nil
}

func (r *PostRepository) Update(ctx context.Context, id string, fn posts.MutateFunc) (*posts.Post, error) {
	var out *posts.Post
	err := inTx(ctx, r.pool, r.tx, "update_post", func(tx pgx.Tx) error {
		post, err := getPost(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(post); err != nil {
			return err
		}

		likes, comments, err := encodePostDocs(post)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE posts SET text = $2, likes = $3, comments = $4 WHERE id = $1`,
			post.ID, post.Text, likes, comments); err != nil {
			return fmt.Errorf("update post: %w", err)
		}
		out = post
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostRepository) Delete(ctx context.Context, id string, check func(p *posts.Post) error) error {
	return inTx(ctx, r.pool, r.tx, "delete_post", func(tx pgx.Tx) error {
		post, err := getPost(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(post); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		return nil
	})
}

func getPost(ctx context.Context, q queryer, id string, lock bool) (*posts.Post, error) {
	sql := selectPost + ` WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	p, err := scanPost(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, posts.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func scanPost(row pgx.Row) (*posts.Post, error) {
	var (
		p               posts.Post
		likes, comments []byte
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Text, &p.Name, &p.Avatar, &likes, &comments, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}
	if err := json.Unmarshal(likes, &p.Likes); err != nil {
		return nil, fmt.Errorf("decode likes: %w", err)
	}
	if err := json.Unmarshal(comments, &p.Comments); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func encodePostDocs(p *posts.Post) (likes, comments []byte, err error) {
	if likes, err = marshalList(p.Likes); err != nil {
		return nil, nil, fmt.Errorf("encode likes: %w", err)
	}
	if comments, err = marshalList(p.Comments); err != nil {
		return nil, nil, fmt.Errorf("encode comments: %w", err)
	}
	return likes, comments, nil
}
