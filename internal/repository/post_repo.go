package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"microboard/internal/model"
)

type PostRepository struct {
	pool *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

func searchPattern(search string) string {
	search = strings.TrimSpace(search)
	if search == "" {
		return ""
	}
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(search) + "%"
}

func (r *PostRepository) List(ctx context.Context, query model.PostQuery) ([]model.Post, int, error) {
	pattern := searchPattern(query.Search)
	offset := (query.Page - 1) * query.Limit

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM posts
		 WHERE $1 = '' OR title ILIKE $1 OR content ILIKE $1`, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, title, content, author_id, created_at, updated_at
		 FROM posts
		 WHERE $1 = '' OR title ILIKE $1 OR content ILIKE $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`, pattern, query.Limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, total, rows.Err()
}

func (r *PostRepository) FindByID(ctx context.Context, id int64) (model.Post, error) {
	var p model.Post
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, content, author_id, created_at, updated_at
		 FROM posts WHERE id = $1`, id).
		Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Post{}, model.ErrPostNotFound
	}
	if err != nil {
		return model.Post{}, fmt.Errorf("find post: %w", err)
	}
	return p, nil
}

func (r *PostRepository) Create(ctx context.Context, p model.Post) (model.Post, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO posts (title, content, author_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		p.Title, p.Content, p.AuthorID).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Post{}, fmt.Errorf("create post: %w", err)
	}
	return p, nil
}

// Update never touches author_id: ownership is fixed at creation.
func (r *PostRepository) Update(ctx context.Context, p model.Post) (model.Post, error) {
	err := r.pool.QueryRow(ctx,
		`UPDATE posts SET title = $2, content = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING author_id, created_at, updated_at`,
		p.ID, p.Title, p.Content).
		Scan(&p.AuthorID, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Post{}, model.ErrPostNotFound
	}
	if err != nil {
		return model.Post{}, fmt.Errorf("update post: %w", err)
	}
	return p, nil
}

func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPostNotFound
	}
	return nil
}
