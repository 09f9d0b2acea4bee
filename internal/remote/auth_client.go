package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"microboard/internal/auth"
	"microboard/internal/model"
)

const (
	verifyPath    = "/api/v1/auth/verify"
	bulkUsersPath = "/api/v1/users/bulk"
)

// AuthClient delegates credential verification to the identity service. Results
// are never cached: every protected request is verified again.
type AuthClient struct {
	baseURL string
	http    *http.Client
}

func NewAuthClient(baseURL string, timeout time.Duration) *AuthClient {
	return &AuthClient{baseURL: baseURL, http: newHTTPClient(timeout)}
}

// NewAuthClientWithHTTP lets callers supply the transport, mainly for tests.
func NewAuthClientWithHTTP(baseURL string, client *http.Client) *AuthClient {
	if client == nil {
		client = newHTTPClient(DefaultTimeout)
	}
	return &AuthClient{baseURL: baseURL, http: client}
}

// Verify resolves the Authorization header value to an identity by asking the
// identity service. The call is bound to ctx, so an abandoned inbound request
// abandons the verification too.
func (c *AuthClient) Verify(ctx context.Context, authorization string) (model.Identity, error) {
	credential, err := auth.BearerToken(authorization)
	if err != nil {
		return model.Identity{}, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential)

	resp, err := do(ctx, c.http, http.MethodPost, joinURL(c.baseURL, verifyPath), header, nil)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("credential verification abandoned", "error", err)
		} else {
			slog.Error("identity service unreachable", "url", c.baseURL, "error", err)
		}
		return model.Identity{}, auth.NewError(auth.KindIdentityServiceUnavailable, "authentication service unavailable", err)
	}

	return classifyVerify(resp)
}

func classifyVerify(resp response) (model.Identity, error) {
	switch resp.status {
	case http.StatusOK:
		var parsed model.VerifyResponse
		if err := json.Unmarshal(resp.body, &parsed); err != nil {
			return model.Identity{}, &auth.Error{
				Kind:           auth.KindVerificationFailed,
				Message:        "unreadable verification response",
				UpstreamStatus: resp.status,
				Err:            err,
			}
		}
		if !parsed.Valid || parsed.User.ID <= 0 {
			return model.Identity{}, auth.NewError(auth.KindInvalidCredential, "token is invalid", nil)
		}
		return parsed.User, nil

	case http.StatusUnauthorized:
		code, message := resp.errorDetails()
		if auth.KindForCode(code) == auth.KindExpired {
			return model.Identity{}, auth.NewError(auth.KindExpired, message, nil)
		}
		if message == "" {
			message = "token is invalid"
		}
		return model.Identity{}, auth.NewError(auth.KindInvalidCredential, message, nil)

	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		// Throttled or shedding load: the credential itself was not rejected.
		return model.Identity{}, &auth.Error{
			Kind:           auth.KindIdentityServiceUnavailable,
			Message:        fmt.Sprintf("identity service answered %d", resp.status),
			UpstreamStatus: resp.status,
		}

	default:
		_, message := resp.errorDetails()
		if message == "" {
			message = fmt.Sprintf("identity service answered %d", resp.status)
		}
		return model.Identity{}, &auth.Error{
			Kind:           auth.KindVerificationFailed,
			Message:        message,
			UpstreamStatus: resp.status,
		}
	}
}

// Optional is the best-effort variant for endpoints that only personalize output:
// any failure, including a missing header, yields nil.
func (c *AuthClient) Optional(ctx context.Context, authorization string) *model.Identity {
	if _, err := auth.BearerToken(authorization); err != nil {
		return nil
	}

	identity, err := c.Verify(ctx, authorization)
	if err != nil {
		slog.Debug("optional authentication ignored", "kind", auth.KindOf(err).Code())
		return nil
	}
	return &identity
}

type bulkUsersEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		Users []model.Identity `json:"users"`
	} `json:"data"`
}

// LookupUsers fetches the identities for ids that still exist. Missing ids are
// simply absent from the result.
func (c *AuthClient) LookupUsers(ctx context.Context, ids []int64) ([]model.Identity, error) {
	if len(ids) == 0 {
		return []model.Identity{}, nil
	}

	resp, err := do(ctx, c.http, http.MethodPost, joinURL(c.baseURL, bulkUsersPath), nil, model.BulkUsersRequest{UserIDs: ids})
	if err != nil {
		return nil, auth.NewError(auth.KindIdentityServiceUnavailable, "authentication service unavailable", err)
	}
	if resp.status != http.StatusOK {
		_, message := resp.errorDetails()
		return nil, fmt.Errorf("bulk user lookup: status %d: %s", resp.status, message)
	}

	var parsed bulkUsersEnvelope
	if err := json.Unmarshal(resp.body, &parsed); err != nil {
		return nil, fmt.Errorf("decode bulk users: %w", err)
	}
	if !parsed.Success {
		return nil, errors.New("bulk user lookup reported failure")
	}
	return parsed.Data.Users, nil
}

// Authors maps ids to display authors, falling back to "Unknown" for ids the
// identity service did not return or when it could not be reached.
func (c *AuthClient) Authors(ctx context.Context, ids []int64) map[int64]model.Author {
	authors := make(map[int64]model.Author, len(ids))
	for _, id := range ids {
		authors[id] = model.UnknownAuthor(id)
	}

	users, err := c.LookupUsers(ctx, ids)
	if err != nil {
		slog.Warn("author enrichment unavailable", "error", err)
		return authors
	}
	for _, user := range users {
		authors[user.ID] = model.Author{ID: user.ID, Username: user.Username}
	}
	return authors
}
