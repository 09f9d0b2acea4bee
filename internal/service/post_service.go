package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"microboard/internal/auth"
	"microboard/internal/model"
	"microboard/pkg/apierror"
)

const (
	defaultPostLimit = 10
	maxTitleLength   = 255
)

type PostService struct {
	posts    PostStore
	authors  AuthorDirectory
	maxLimit int
}

func NewPostService(posts PostStore, authors AuthorDirectory, maxLimit int) *PostService {
	if maxLimit <= 0 {
		maxLimit = 50
	}
	return &PostService{posts: posts, authors: authors, maxLimit: maxLimit}
}

func (s *PostService) List(ctx context.Context, query model.PostQuery) (model.PostList, *model.Meta, error) {
	query.Page, query.Limit = normalizePage(query.Page, query.Limit, defaultPostLimit, s.maxLimit)

	posts, total, err := s.posts.List(ctx, query)
	if err != nil {
		return model.PostList{}, nil, err
	}

	authors := s.authors.Authors(ctx, uniqueAuthorIDs(posts, func(p model.Post) int64 { return p.AuthorID }))
	views := make([]model.PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, postView(p, authors, nil))
	}
	return model.PostList{Posts: views}, model.NewMeta(query.Page, query.Limit, total), nil
}

// Get returns the post. viewer is optional; when present CanEdit reflects ownership.
func (s *PostService) Get(ctx context.Context, id int64, viewer *model.Identity) (model.PostView, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return model.PostView{}, err
	}
	authors := s.authors.Authors(ctx, []int64{post.AuthorID})
	return postView(post, authors, viewer), nil
}

func (s *PostService) Create(ctx context.Context, identity model.Identity, req model.CreatePostRequest) (model.PostView, error) {
	if err := validateTitle(req.Title); err != nil {
		return model.PostView{}, err
	}
	if err := validateContent(req.Content); err != nil {
		return model.PostView{}, err
	}

	post, err := s.posts.Create(ctx, model.Post{
		Title:    req.Title,
		Content:  req.Content,
		AuthorID: identity.ID,
	})
	if err != nil {
		return model.PostView{}, err
	}

	author := map[int64]model.Author{identity.ID: {ID: identity.ID, Username: identity.Username}}
	return postView(post, author, &identity), nil
}

func (s *PostService) Update(ctx context.Context, identity model.Identity, id int64, req model.UpdatePostRequest) (model.PostView, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return model.PostView{}, err
	}
	if err := auth.Authorize(identity, post.AuthorID, "edit your own posts"); err != nil {
		return model.PostView{}, err
	}

	if req.Title == nil && req.Content == nil {
		return model.PostView{}, apierror.BadRequest("title or content is required", "")
	}
	if req.Title != nil {
		if err := validateTitle(*req.Title); err != nil {
			return model.PostView{}, err
		}
		post.Title = *req.Title
	}
	if req.Content != nil {
		if err := validateContent(*req.Content); err != nil {
			return model.PostView{}, err
		}
		post.Content = *req.Content
	}

	updated, err := s.posts.Update(ctx, post)
	if err != nil {
		return model.PostView{}, err
	}
	authors := s.authors.Authors(ctx, []int64{updated.AuthorID})
	return postView(updated, authors, &identity), nil
}

func (s *PostService) Delete(ctx context.Context, identity model.Identity, id int64) error {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.Authorize(identity, post.AuthorID, "delete your own posts"); err != nil {
		return err
	}
	return s.posts.Delete(ctx, id)
}

func postView(p model.Post, authors map[int64]model.Author, viewer *model.Identity) model.PostView {
	author, ok := authors[p.AuthorID]
	if !ok {
		author = model.UnknownAuthor(p.AuthorID)
	}
	canEdit := viewer != nil && auth.Decide(*viewer, p.AuthorID) == auth.Allow
	return model.PostView{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Author:    author,
		CanEdit:   canEdit,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return apierror.BadRequest("title is required", "title")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return apierror.BadRequest(fmt.Sprintf("title must be at most %d characters", maxTitleLength), "title")
	}
	return nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apierror.BadRequest("content is required", "content")
	}
	return nil
}
