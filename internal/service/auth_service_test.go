package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"microboard/internal/auth"
	"microboard/internal/model"
	"microboard/internal/repository"
	"microboard/internal/token"
	"microboard/pkg/apierror"
)

func newTestAuthService(t *testing.T) (*AuthService, *repository.MemoryUserStore) {
	t.Helper()

	issuer, err := token.NewIssuer("test-signing-secret", token.DefaultTTL)
	require.NoError(t, err)
	users := repository.NewMemoryUserStore()
	return NewAuthService(users, issuer, bcrypt.MinCost), users
}

func TestAuthServiceSignupAndSignin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newTestAuthService(t)

	registered, err := svc.Signup(ctx, model.SignupRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotZero(t, registered.User.ID)
	require.NotEqual(t, "secret1", registered.User.PasswordHash)

	identity, err := svc.VerifyToken(ctx, registered.Token)
	require.NoError(t, err)
	require.Equal(t, registered.User.Identity(), identity)

	signedIn, err := svc.Signin(ctx, model.SigninRequest{Email: "ALICE@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, signedIn.User.ID)

	_, err = svc.Signin(ctx, model.SigninRequest{Email: "alice@example.com", Password: "wrong-password"})
	require.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = svc.Signin(ctx, model.SigninRequest{Email: "nobody@example.com", Password: "secret1"})
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestAuthServiceSignupRejectsDuplicates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newTestAuthService(t)

	_, err := svc.Signup(ctx, model.SignupRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, model.SignupRequest{Username: "alice", Email: "other@example.com", Password: "secret1"})
	require.ErrorIs(t, err, model.ErrUserAlreadyExists)

	_, err = svc.Signup(ctx, model.SignupRequest{Username: "alice2", Email: "alice@example.com", Password: "secret1"})
	require.ErrorIs(t, err, model.ErrUserAlreadyExists)
}

func TestAuthServiceSignupValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(t)

	cases := []struct {
		name    string
		req     model.SignupRequest
		details string
	}{
		{"short username", model.SignupRequest{Username: "al", Email: "a@example.com", Password: "secret1"}, "username"},
		{"symbol in username", model.SignupRequest{Username: "al-ice", Email: "a@example.com", Password: "secret1"}, "username"},
		{"bad email", model.SignupRequest{Username: "alice", Email: "not-an-email", Password: "secret1"}, "email"},
		{"display name email", model.SignupRequest{Username: "alice", Email: "Alice <a@example.com>", Password: "secret1"}, "email"},
		{"short password", model.SignupRequest{Username: "alice", Email: "a@example.com", Password: "12345"}, "password"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.Signup(context.Background(), tc.req)
			var apiErr *apierror.APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, "BAD_REQUEST", apiErr.Code)
			require.Equal(t, tc.details, apiErr.Details)
		})
	}
}

func TestAuthServiceVerifyTokenDeletedSubject(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, users := newTestAuthService(t)

	registered, err := svc.Signup(ctx, model.SignupRequest{Username: "ghost", Email: "ghost@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, users.Delete(ctx, registered.User.ID))

	// The token itself is still well formed.
	_, err = svc.ValidateToken(registered.Token)
	require.NoError(t, err)

	_, err = svc.VerifyToken(ctx, registered.Token)
	require.ErrorIs(t, err, auth.ErrInvalidCredential)
}

func TestAuthServiceVerifyTokenRejectsGarbage(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(t)
	_, err := svc.VerifyToken(context.Background(), "not.a.token")
	require.ErrorIs(t, err, auth.ErrMalformed)
}

func TestAuthServiceBulkUsers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newTestAuthService(t)

	for _, name := range []string{"alice", "bob"} {
		_, err := svc.Signup(ctx, model.SignupRequest{Username: name, Email: name + "@example.com", Password: "secret1"})
		require.NoError(t, err)
	}

	users, err := svc.BulkUsers(ctx, []int64{2, 1, 99, -1})
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "alice", users[0].Username)
	require.Empty(t, users[0].PasswordHash)

	_, err = svc.BulkUsers(ctx, nil)
	var apiErr *apierror.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "userIds", apiErr.Details)

	_, err = svc.GetUser(ctx, 0)
	require.ErrorIs(t, err, model.ErrUserNotFound)
}
