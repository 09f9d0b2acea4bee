package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"microboard/internal/auth"
	"microboard/internal/model"
	"microboard/internal/repository"
)

type postSet map[int64]bool

func (p postSet) Exists(_ context.Context, postID int64) error {
	if p[postID] {
		return nil
	}
	return auth.NewError(auth.KindNotFound, "post not found", nil)
}

func TestCommentServiceLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewCommentService(repository.NewMemoryCommentStore(), staticAuthors{1: "alice", 2: "bob"}, postSet{10: true})

	created, err := svc.Create(ctx, alice, 10, model.CommentRequest{Content: "first"})
	require.NoError(t, err)
	require.Equal(t, int64(10), created.PostID)
	require.Equal(t, "alice", created.Author.Username)

	_, err = svc.Create(ctx, bob, 10, model.CommentRequest{Content: "second"})
	require.NoError(t, err)

	list, meta, err := svc.ListByPost(ctx, model.CommentQuery{PostID: 10, Limit: 1000})
	require.NoError(t, err)
	require.Len(t, list.Comments, 2)
	require.Equal(t, "first", list.Comments[0].Content)
	require.Equal(t, "bob", list.Comments[1].Author.Username)
	require.Equal(t, 100, meta.Limit)

	_, err = svc.Update(ctx, bob, created.ID, model.CommentRequest{Content: "edited"})
	require.ErrorIs(t, err, auth.ErrForbidden)

	updated, err := svc.Update(ctx, alice, created.ID, model.CommentRequest{Content: "edited"})
	require.NoError(t, err)
	require.Equal(t, "edited", updated.Content)

	require.ErrorIs(t, svc.Delete(ctx, bob, created.ID), auth.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, alice, created.ID))
	require.ErrorIs(t, svc.Delete(ctx, alice, created.ID), model.ErrCommentNotFound)
}

func TestCommentServiceRequiresExistingPost(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryCommentStore()
	svc := NewCommentService(store, staticAuthors{}, postSet{})

	_, err := svc.Create(context.Background(), alice, 99, model.CommentRequest{Content: "hello"})
	require.ErrorIs(t, err, auth.ErrNotFound)

	list, _, err := svc.ListByPost(context.Background(), model.CommentQuery{PostID: 99})
	require.NoError(t, err)
	require.Empty(t, list.Comments)
}
