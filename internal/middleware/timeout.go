package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

// Timeout bounds handler time. The handler's context is cancelled on expiry, which
// also abandons any outbound verification call made on its behalf.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	message, _ := json.Marshal(errorEnvelope("REQUEST_TIMEOUT", "request timed out"))

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(message))
	}
}
