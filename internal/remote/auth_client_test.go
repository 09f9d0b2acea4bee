package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microboard/internal/auth"
	"microboard/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errorBody(code string, message string) model.APIResponse {
	return model.APIResponse{Success: false, Error: &model.APIError{Code: code, Message: message}}
}

func newIdentityServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestVerifyMissingCredentialMakesNoCall(t *testing.T) {
	t.Parallel()

	server, calls := newIdentityServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, model.VerifyResponse{Valid: true, User: model.Identity{ID: 1}})
	})
	client := NewAuthClient(server.URL, time.Second)

	for _, header := range []string{"", "Basic abc", "Bearer "} {
		_, err := client.Verify(context.Background(), header)
		require.ErrorIs(t, err, auth.ErrMissingCredential, "header %q", header)
	}
	require.Nil(t, client.Optional(context.Background(), ""))
	require.Equal(t, int32(0), calls.Load())
}

func TestVerifyClassification(t *testing.T) {
	t.Parallel()

	alice := model.Identity{ID: 3, Username: "alice", Email: "a@x.com"}

	cases := []struct {
		name    string
		handler http.HandlerFunc
		kind    auth.Kind
		status  int
	}{
		{
			name: "invalid",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusUnauthorized, errorBody("INVALID_TOKEN", "Token is invalid"))
			},
			kind:   auth.KindInvalidCredential,
			status: http.StatusUnauthorized,
		},
		{
			name: "deleted subject",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusUnauthorized, errorBody("INVALID_CREDENTIAL", "User not found"))
			},
			kind:   auth.KindInvalidCredential,
			status: http.StatusUnauthorized,
		},
		{
			name: "expired",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusUnauthorized, errorBody("TOKEN_EXPIRED", "Token has expired"))
			},
			kind:   auth.KindExpired,
			status: http.StatusUnauthorized,
		},
		{
			name: "valid false",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, model.VerifyResponse{Valid: false})
			},
			kind:   auth.KindInvalidCredential,
			status: http.StatusUnauthorized,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusInternalServerError, errorBody("INTERNAL_ERROR", "Failed to verify token"))
			},
			kind:   auth.KindVerificationFailed,
			status: http.StatusBadGateway,
		},
		{
			name: "bare message body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad things"})
			},
			kind:   auth.KindVerificationFailed,
			status: http.StatusBadGateway,
		},
		{
			name: "throttled",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, errorBody("RATE_LIMITED", "Too many requests"))
			},
			kind:   auth.KindIdentityServiceUnavailable,
			status: http.StatusServiceUnavailable,
		},
		{
			name: "shedding load",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusServiceUnavailable, errorBody("SERVICE_UNAVAILABLE", "Try again later"))
			},
			kind:   auth.KindIdentityServiceUnavailable,
			status: http.StatusServiceUnavailable,
		},
		{
			name: "garbage success body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("<html>"))
			},
			kind:   auth.KindVerificationFailed,
			status: http.StatusBadGateway,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server, calls := newIdentityServer(t, tc.handler)
			client := NewAuthClient(server.URL, time.Second)

			identity, err := client.Verify(context.Background(), "Bearer some.token.value")
			require.Error(t, err)
			require.Equal(t, model.Identity{}, identity)
			require.Equal(t, tc.kind, auth.KindOf(err))

			var authErr *auth.Error
			require.ErrorAs(t, err, &authErr)
			require.Equal(t, tc.status, authErr.HTTPStatus())
			require.Equal(t, int32(1), calls.Load())
		})
	}

	t.Run("server message is carried", func(t *testing.T) {
		t.Parallel()

		server, _ := newIdentityServer(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusInternalServerError, errorBody("INTERNAL_ERROR", "Failed to verify token"))
		})
		_, err := NewAuthClient(server.URL, time.Second).Verify(context.Background(), "Bearer x")
		require.ErrorIs(t, err, auth.ErrVerificationFailed)
		require.Contains(t, err.Error(), "Failed to verify token")
	})

	t.Run("success forwards the credential", func(t *testing.T) {
		t.Parallel()

		server, _ := newIdentityServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, verifyPath, r.URL.Path)
			assert.Equal(t, "Bearer good.token", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, model.VerifyResponse{Valid: true, User: alice})
		})
		client := NewAuthClient(server.URL+"/", time.Second)

		identity, err := client.Verify(context.Background(), "bearer good.token")
		require.NoError(t, err)
		require.Equal(t, alice, identity)

		optional := client.Optional(context.Background(), "Bearer good.token")
		require.NotNil(t, optional)
		require.Equal(t, alice, *optional)
	})
}

func TestVerifyNoCaching(t *testing.T) {
	t.Parallel()

	server, calls := newIdentityServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, model.VerifyResponse{Valid: true, User: model.Identity{ID: 9}})
	})
	client := NewAuthClient(server.URL, time.Second)

	for i := 0; i < 3; i++ {
		_, err := client.Verify(context.Background(), "Bearer same.token")
		require.NoError(t, err)
	}
	require.Equal(t, int32(3), calls.Load())
}

func TestVerifyIdentityServiceUnavailable(t *testing.T) {
	t.Parallel()

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		server, _ := newIdentityServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		})
		client := NewAuthClient(server.URL, 50*time.Millisecond)

		started := time.Now()
		_, err := client.Verify(context.Background(), "Bearer slow.token")
		require.ErrorIs(t, err, auth.ErrIdentityServiceUnavailable)
		require.NotErrorIs(t, err, auth.ErrInvalidCredential)
		require.Less(t, time.Since(started), 2*time.Second)

		var authErr *auth.Error
		require.ErrorAs(t, err, &authErr)
		require.Equal(t, http.StatusServiceUnavailable, authErr.HTTPStatus())
	})

	t.Run("connection refused", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		_, err := NewAuthClient(url, time.Second).Verify(context.Background(), "Bearer any.token")
		require.ErrorIs(t, err, auth.ErrIdentityServiceUnavailable)
		require.Nil(t, NewAuthClient(url, time.Second).Optional(context.Background(), "Bearer any.token"))
	})

	t.Run("abandoned inbound request", func(t *testing.T) {
		t.Parallel()

		server, _ := newIdentityServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		})
		client := NewAuthClient(server.URL, 10*time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(30 * time.Millisecond)
			cancel()
		}()

		started := time.Now()
		_, err := client.Verify(ctx, "Bearer any.token")
		require.ErrorIs(t, err, auth.ErrIdentityServiceUnavailable)
		require.ErrorIs(t, err, context.Canceled)
		require.Less(t, time.Since(started), 2*time.Second)
	})
}

func TestLookupUsersAndAuthors(t *testing.T) {
	t.Parallel()

	server, _ := newIdentityServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req model.BulkUsersRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, bulkUsersPath, r.URL.Path)

		users := make([]model.Identity, 0)
		for _, id := range req.UserIDs {
			if id == 1 {
				users = append(users, model.Identity{ID: 1, Username: "alice"})
			}
		}
		writeJSON(w, http.StatusOK, model.APIResponse{Success: true, Data: map[string]any{"users": users}})
	})
	client := NewAuthClient(server.URL, time.Second)

	users, err := client.LookupUsers(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Equal(t, []model.Identity{{ID: 1, Username: "alice"}}, users)

	authors := client.Authors(context.Background(), []int64{1, 2})
	require.Equal(t, model.Author{ID: 1, Username: "alice"}, authors[1])
	require.Equal(t, model.UnknownAuthor(2), authors[2])

	empty, err := client.LookupUsers(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestAuthorsFallBackWhenIdentityServiceDown(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	authors := NewAuthClient(url, 100*time.Millisecond).Authors(context.Background(), []int64{4})
	require.Equal(t, map[int64]model.Author{4: model.UnknownAuthor(4)}, authors)
}
