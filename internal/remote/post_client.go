package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"microboard/internal/auth"
	"microboard/pkg/apierror"
)

type PostClient struct {
	baseURL string
	http    *http.Client
}

func NewPostClient(baseURL string, timeout time.Duration) *PostClient {
	return &PostClient{baseURL: baseURL, http: newHTTPClient(timeout)}
}

// Exists confirms the post is still present in the post service.
func (c *PostClient) Exists(ctx context.Context, postID int64) error {
	resp, err := do(ctx, c.http, http.MethodGet, joinURL(c.baseURL, fmt.Sprintf("/api/v1/posts/%d", postID)), nil, nil)
	if err != nil {
		slog.Error("post service unreachable", "url", c.baseURL, "error", err)
		return apierror.New("POST_SERVICE_UNAVAILABLE", "post service unavailable", "", http.StatusServiceUnavailable)
	}

	switch resp.status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return auth.NewError(auth.KindNotFound, "post not found", nil)
	default:
		_, message := resp.errorDetails()
		return apierror.New("UPSTREAM_ERROR", "failed to verify post existence", message, http.StatusBadGateway)
	}
}
