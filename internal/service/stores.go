package service

import (
	"context"

	"microboard/internal/model"
)

type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByIDs(ctx context.Context, ids []int64) ([]model.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username string, email string) (bool, error)
	Create(ctx context.Context, u model.User) (model.User, error)
}

type PostStore interface {
	List(ctx context.Context, query model.PostQuery) ([]model.Post, int, error)
	FindByID(ctx context.Context, id int64) (model.Post, error)
	Create(ctx context.Context, p model.Post) (model.Post, error)
	Update(ctx context.Context, p model.Post) (model.Post, error)
	Delete(ctx context.Context, id int64) error
}

type CommentStore interface {
	ListByPost(ctx context.Context, query model.CommentQuery) ([]model.Comment, int, error)
	FindByID(ctx context.Context, id int64) (model.Comment, error)
	Create(ctx context.Context, c model.Comment) (model.Comment, error)
	Update(ctx context.Context, c model.Comment) (model.Comment, error)
	Delete(ctx context.Context, id int64) error
}

// AuthorDirectory resolves author display data held by the identity service.
type AuthorDirectory interface {
	Authors(ctx context.Context, ids []int64) map[int64]model.Author
}

// PostChecker confirms a post exists before a comment is attached to it.
type PostChecker interface {
	Exists(ctx context.Context, postID int64) error
}

func normalizePage(page int, limit int, defaultLimit int, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func uniqueAuthorIDs[T any](items []T, author func(T) int64) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		id := author(item)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
