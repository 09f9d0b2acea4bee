package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"microboard/internal/model"
)

type CommentRepository struct {
	pool *pgxpool.Pool
}

func NewCommentRepository(pool *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{pool: pool}
}

func (r *CommentRepository) ListByPost(ctx context.Context, query model.CommentQuery) ([]model.Comment, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM comments WHERE post_id = $1`, query.PostID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, post_id, author_id, content, created_at, updated_at
		 FROM comments WHERE post_id = $1
		 ORDER BY created_at ASC, id ASC
		 LIMIT $2 OFFSET $3`, query.PostID, query.Limit, (query.Page-1)*query.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0)
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, total, rows.Err()
}

func (r *CommentRepository) FindByID(ctx context.Context, id int64) (model.Comment, error) {
	var c model.Comment
	err := r.pool.QueryRow(ctx,
		`SELECT id, post_id, author_id, content, created_at, updated_at
		 FROM comments WHERE id = $1`, id).
		Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Comment{}, model.ErrCommentNotFound
	}
	if err != nil {
		return model.Comment{}, fmt.Errorf("find comment: %w", err)
	}
	return c, nil
}

func (r *CommentRepository) Create(ctx context.Context, c model.Comment) (model.Comment, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO comments (post_id, author_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		c.PostID, c.AuthorID, c.Content).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

func (r *CommentRepository) Update(ctx context.Context, c model.Comment) (model.Comment, error) {
	err := r.pool.QueryRow(ctx,
		`UPDATE comments SET content = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING post_id, author_id, created_at, updated_at`,
		c.ID, c.Content).
		Scan(&c.PostID, &c.AuthorID, &c.CreatedAt, &c.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Comment{}, model.ErrCommentNotFound
	}
	if err != nil {
		return model.Comment{}, fmt.Errorf("update comment: %w", err)
	}
	return c, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCommentNotFound
	}
	return nil
}
