package middleware

import (
	"context"
	"errors"
	"net/http"

	"microboard/internal/auth"
	"microboard/internal/model"
	"microboard/internal/token"
)

type tokenValidator interface {
	ValidateToken(tokenString string) (*token.Claims, error)
}

// remoteVerifier delegates credential checks to the identity service.
type remoteVerifier interface {
	Verify(ctx context.Context, authorization string) (model.Identity, error)
	Optional(ctx context.Context, authorization string) *model.Identity
}

type contextKey string

const identityContextKey contextKey = "auth_identity"

// AuthMiddleware verifies tokens locally. Only the identity service holds the
// signing secret, so only it mounts this middleware.
type AuthMiddleware struct {
	validator tokenValidator
}

func NewAuthMiddleware(validator tokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeAuthError(w, err)
			return
		}

		claims, err := m.validator.ValidateToken(credential)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.Identity())))
	})
}

// RemoteAuth verifies every request against the identity service. Results are
// never cached between requests.
type RemoteAuth struct {
	verifier remoteVerifier
}

func NewRemoteAuth(verifier remoteVerifier) *RemoteAuth {
	return &RemoteAuth{verifier: verifier}
}

func (m *RemoteAuth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.verifier.Verify(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			writeAuthError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// OptionalAuth attaches an identity when one can be verified and otherwise lets
// the request through anonymously.
func (m *RemoteAuth) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity := m.verifier.Optional(r.Context(), r.Header.Get("Authorization")); identity != nil {
			r = r.WithContext(WithIdentity(r.Context(), *identity))
		}
		next.ServeHTTP(w, r)
	})
}

func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	if info := requestInfoFrom(ctx); info != nil {
		info.userID = identity.ID
	}
	return context.WithValue(ctx, identityContextKey, identity)
}

func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	return identity, ok && identity.ID > 0
}

func writeAuthError(w http.ResponseWriter, err error) {
	var authErr *auth.Error
	if !errors.As(err, &authErr) {
		authErr = auth.NewError(auth.KindUnknown, "Unexpected server error", err)
	}
	writeEnvelope(w, authErr.HTTPStatus(), authErr.Kind.Code(), authMessage(authErr))
}

func authMessage(err *auth.Error) string {
	if err.Message != "" {
		return err.Message
	}
	switch err.Kind {
	case auth.KindMissingCredential:
		return "Access token required"
	case auth.KindExpired:
		return "Token has expired"
	case auth.KindIdentityServiceUnavailable:
		return "Authentication service unavailable"
	default:
		return "Invalid token"
	}
}
