package service

import (
	"context"

	"microboard/internal/auth"
	"microboard/internal/model"
)

const (
	defaultCommentLimit = 20
	maxCommentLimit     = 100
)

type CommentService struct {
	comments CommentStore
	authors  AuthorDirectory
	posts    PostChecker
}

func NewCommentService(comments CommentStore, authors AuthorDirectory, posts PostChecker) *CommentService {
	return &CommentService{comments: comments, authors: authors, posts: posts}
}

func (s *CommentService) ListByPost(ctx context.Context, query model.CommentQuery) (model.CommentList, *model.Meta, error) {
	if query.PostID <= 0 {
		return model.CommentList{}, nil, model.ErrPostNotFound
	}
	query.Page, query.Limit = normalizePage(query.Page, query.Limit, defaultCommentLimit, maxCommentLimit)

	comments, total, err := s.comments.ListByPost(ctx, query)
	if err != nil {
		return model.CommentList{}, nil, err
	}

	authors := s.authors.Authors(ctx, uniqueAuthorIDs(comments, func(c model.Comment) int64 { return c.AuthorID }))
	views := make([]model.CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, commentView(c, authors))
	}
	return model.CommentList{Comments: views}, model.NewMeta(query.Page, query.Limit, total), nil
}

func (s *CommentService) Create(ctx context.Context, identity model.Identity, postID int64, req model.CommentRequest) (model.CommentView, error) {
	if err := validateContent(req.Content); err != nil {
		return model.CommentView{}, err
	}
	if err := s.posts.Exists(ctx, postID); err != nil {
		return model.CommentView{}, err
	}

	comment, err := s.comments.Create(ctx, model.Comment{
		PostID:   postID,
		AuthorID: identity.ID,
		Content:  req.Content,
	})
	if err != nil {
		return model.CommentView{}, err
	}

	author := map[int64]model.Author{identity.ID: {ID: identity.ID, Username: identity.Username}}
	return commentView(comment, author), nil
}

func (s *CommentService) Update(ctx context.Context, identity model.Identity, id int64, req model.CommentRequest) (model.CommentView, error) {
	comment, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return model.CommentView{}, err
	}
	if err := auth.Authorize(identity, comment.AuthorID, "edit your own comments"); err != nil {
		return model.CommentView{}, err
	}
	if err := validateContent(req.Content); err != nil {
		return model.CommentView{}, err
	}

	comment.Content = req.Content
	updated, err := s.comments.Update(ctx, comment)
	if err != nil {
		return model.CommentView{}, err
	}
	return commentView(updated, s.authors.Authors(ctx, []int64{updated.AuthorID})), nil
}

func (s *CommentService) Delete(ctx context.Context, identity model.Identity, id int64) error {
	comment, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.Authorize(identity, comment.AuthorID, "delete your own comments"); err != nil {
		return err
	}
	return s.comments.Delete(ctx, id)
}

func commentView(c model.Comment, authors map[int64]model.Author) model.CommentView {
	author, ok := authors[c.AuthorID]
	if !ok {
		author = model.UnknownAuthor(c.AuthorID)
	}
	return model.CommentView{
		ID:        c.ID,
		PostID:    c.PostID,
		Content:   c.Content,
		Author:    author,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
