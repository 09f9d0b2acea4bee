package auth

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"microboard/internal/model"
)

func TestBearerToken(t *testing.T) {
	t.Parallel()

	t.Run("extracts token regardless of scheme case", func(t *testing.T) {
		token, err := BearerToken("bearer abc.def.ghi")
		require.NoError(t, err)
		require.Equal(t, "abc.def.ghi", token)

		token, err = BearerToken("  Bearer   xyz  ")
		require.NoError(t, err)
		require.Equal(t, "xyz", token)
	})

	t.Run("rejects missing, empty and foreign schemes", func(t *testing.T) {
		for _, header := range []string{"", "Bearer", "Bearer    ", "Basic dXNlcjpwYXNz", "Token abc"} {
			_, err := BearerToken(header)
			require.ErrorIs(t, err, ErrMissingCredential, "header %q", header)
		}
	})
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	alice := model.Identity{ID: 1, Username: "alice"}
	bob := model.Identity{ID: 2, Username: "bob"}

	require.Equal(t, Allow, Decide(alice, 1))
	require.Equal(t, Deny, Decide(alice, 2))
	require.Equal(t, Deny, Decide(model.Identity{}, 0))

	require.NoError(t, Authorize(alice, alice.ID, "edit your own posts"))

	err := Authorize(bob, alice.ID, "edit your own posts")
	require.ErrorIs(t, err, ErrForbidden)
	require.NotErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrMissingCredential)
	require.Contains(t, err.Error(), "edit your own posts")
}

func TestErrorMatchingAndStatus(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("create post: %w", NewError(KindExpired, "token has expired", nil))
	require.ErrorIs(t, wrapped, ErrExpired)
	require.NotErrorIs(t, wrapped, ErrMalformed)
	require.Equal(t, KindExpired, KindOf(wrapped))
	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))

	cases := []struct {
		err  *Error
		want int
	}{
		{NewError(KindMissingCredential, "", nil), http.StatusUnauthorized},
		{NewError(KindMalformed, "", nil), http.StatusUnauthorized},
		{NewError(KindInvalidCredential, "", nil), http.StatusUnauthorized},
		{NewError(KindForbidden, "", nil), http.StatusForbidden},
		{NewError(KindNotFound, "", nil), http.StatusNotFound},
		{NewError(KindIdentityServiceUnavailable, "", nil), http.StatusServiceUnavailable},
		{&Error{Kind: KindVerificationFailed, UpstreamStatus: http.StatusInternalServerError}, http.StatusBadGateway},
		{&Error{Kind: KindVerificationFailed, UpstreamStatus: http.StatusBadRequest}, http.StatusBadGateway},
		{&Error{Kind: KindVerificationFailed, UpstreamStatus: http.StatusTooManyRequests}, http.StatusBadGateway},
		{&Error{Kind: KindIdentityServiceUnavailable, UpstreamStatus: http.StatusTooManyRequests}, http.StatusServiceUnavailable},
		{NewError(KindSecretMissing, "", nil), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.err.HTTPStatus(), tc.err.Kind.Code())
	}
}

func TestKindCodesRoundTrip(t *testing.T) {
	t.Parallel()

	for kind := KindMissingCredential; kind <= KindSecretMissing; kind++ {
		require.Equal(t, kind, KindForCode(kind.Code()))
	}
	require.Equal(t, KindUnknown, KindForCode("SOMETHING_ELSE"))
	require.True(t, KindExpired.Authentication())
	require.False(t, KindIdentityServiceUnavailable.Authentication())
	require.False(t, KindForbidden.Authentication())
}
