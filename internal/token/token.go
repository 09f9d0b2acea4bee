// Package token issues and verifies the HS256 bearer credentials minted by the
// identity service.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"microboard/internal/auth"
	"microboard/internal/model"
)

const DefaultTTL = 24 * time.Hour

// Claims is the signed payload. UserID, Username and Email are a snapshot of the
// identity at issuance time.
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() model.Identity {
	return model.Identity{ID: c.UserID, Username: c.Username, Email: c.Email}
}

func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time.UTC()
}

func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time.UTC()
}

// Issue signs a credential for identity valid from issuedAt for ttl.
func Issue(identity model.Identity, secret []byte, issuedAt time.Time, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret is required")
	}
	if identity.ID <= 0 {
		return "", fmt.Errorf("invalid subject id %d", identity.ID)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	claims := Claims{
		UserID:   identity.ID,
		Username: identity.Username,
		Email:    identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature then expiry against now and decodes the claims. It does
// no I/O. A bad signature is always Malformed, even if the token is also expired.
func Verify(tokenString string, secret []byte, now time.Time) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, auth.NewError(auth.KindMalformed, "token is empty", nil)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, auth.NewError(auth.KindExpired, "token has expired", err)
		}
		return nil, auth.NewError(auth.KindMalformed, "token is invalid", err)
	}
	if !parsed.Valid {
		return nil, auth.NewError(auth.KindMalformed, "token is invalid", nil)
	}
	if claims.UserID <= 0 {
		return nil, auth.NewError(auth.KindMalformed, "token subject is missing", nil)
	}

	return claims, nil
}

// Issuer binds a secret, a lifetime and a clock so callers only pass identities.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

func (i *Issuer) Issue(identity model.Identity) (string, error) {
	return Issue(identity, i.secret, i.now().UTC(), i.ttl)
}

func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	return Verify(tokenString, i.secret, i.now().UTC())
}
