package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"microboard/internal/auth"
	"microboard/internal/model"
	"microboard/pkg/apierror"
)

func TestPostClientExists(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/posts/1":
			writeJSON(w, http.StatusOK, model.APIResponse{Success: true})
		case "/api/v1/posts/2":
			writeJSON(w, http.StatusNotFound, errorBody("NOT_FOUND", "Post not found"))
		default:
			writeJSON(w, http.StatusInternalServerError, errorBody("INTERNAL_ERROR", "boom"))
		}
	}))
	t.Cleanup(server.Close)

	client := NewPostClient(server.URL, time.Second)

	require.NoError(t, client.Exists(context.Background(), 1))
	require.ErrorIs(t, client.Exists(context.Background(), 2), auth.ErrNotFound)

	var apiErr *apierror.APIError
	require.True(t, errors.As(client.Exists(context.Background(), 3), &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.HTTPStatus)
}

func TestPostClientUnavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	var apiErr *apierror.APIError
	err := NewPostClient(url, time.Second).Exists(context.Background(), 1)
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusServiceUnavailable, apiErr.HTTPStatus)
	require.Equal(t, "POST_SERVICE_UNAVAILABLE", apiErr.Code)
}
