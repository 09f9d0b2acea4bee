package auth

import "strings"

const bearerPrefix = "bearer "

// BearerToken extracts the credential from an Authorization header value. An empty
// header, a different scheme or an empty token all yield MissingCredential.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", NewError(KindMissingCredential, "missing or invalid authorization header", nil)
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", NewError(KindMissingCredential, "missing or invalid authorization header", nil)
	}

	return token, nil
}
