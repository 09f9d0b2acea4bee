// Package auth holds the credential error taxonomy, bearer header parsing and the
// ownership guard shared by every service.
package auth

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindMissingCredential
	KindMalformed
	KindExpired
	KindInvalidCredential
	KindIdentityServiceUnavailable
	KindVerificationFailed
	KindForbidden
	KindNotFound
	KindSecretMissing
)

var kindCodes = map[Kind]string{
	KindUnknown:                    "INTERNAL_ERROR",
	KindMissingCredential:          "MISSING_CREDENTIAL",
	KindMalformed:                  "INVALID_TOKEN",
	KindExpired:                    "TOKEN_EXPIRED",
	KindInvalidCredential:          "INVALID_CREDENTIAL",
	KindIdentityServiceUnavailable: "IDENTITY_SERVICE_UNAVAILABLE",
	KindVerificationFailed:         "VERIFICATION_FAILED",
	KindForbidden:                  "FORBIDDEN",
	KindNotFound:                   "NOT_FOUND",
	KindSecretMissing:              "SECRET_MISSING",
}

// Code is the stable wire code for k. Remote callers classify responses by it.
func (k Kind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[KindUnknown]
}

func (k Kind) String() string {
	return k.Code()
}

// Authentication reports whether k means the caller failed to prove who they are.
func (k Kind) Authentication() bool {
	switch k {
	case KindMissingCredential, KindMalformed, KindExpired, KindInvalidCredential:
		return true
	}
	return false
}

// KindForCode is the inverse of Kind.Code. Unknown codes map to KindUnknown.
func KindForCode(code string) Kind {
	for kind, c := range kindCodes {
		if kind != KindUnknown && c == code {
			return kind
		}
	}
	return KindUnknown
}

type Error struct {
	Kind    Kind
	Message string
	// UpstreamStatus is the HTTP status the identity service answered with, when the
	// error came from a remote verification.
	UpstreamStatus int
	Err            error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Code()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, auth.ErrExpired) works
// regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// HTTPStatus is the status a service reports for this error at its boundary.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindMissingCredential, KindMalformed, KindExpired, KindInvalidCredential:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindIdentityServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindVerificationFailed:
		// The caller's credential was never judged, so this is never a 401.
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrMissingCredential          = &Error{Kind: KindMissingCredential}
	ErrMalformed                  = &Error{Kind: KindMalformed}
	ErrExpired                    = &Error{Kind: KindExpired}
	ErrInvalidCredential          = &Error{Kind: KindInvalidCredential}
	ErrIdentityServiceUnavailable = &Error{Kind: KindIdentityServiceUnavailable}
	ErrVerificationFailed         = &Error{Kind: KindVerificationFailed}
	ErrForbidden                  = &Error{Kind: KindForbidden}
	ErrNotFound                   = &Error{Kind: KindNotFound}
	ErrSecretMissing              = &Error{Kind: KindSecretMissing}
)

func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the taxonomy kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindUnknown
}
