// Package remote holds the HTTP clients dependent services use to reach the
// identity service and each other.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"microboard/internal/middleware"
)

const (
	DefaultTimeout  = 5 * time.Second
	maxResponseBody = 1 << 20
)

type response struct {
	status int
	body   []byte
}

// errorEnvelope accepts both the service envelope and a bare {"message": ...} body.
type errorEnvelope struct {
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r response) errorDetails() (code string, message string) {
	var parsed errorEnvelope
	if err := json.Unmarshal(r.body, &parsed); err != nil {
		return "", strings.TrimSpace(string(r.body))
	}
	if parsed.Error != nil {
		return parsed.Error.Code, parsed.Error.Message
	}
	return "", parsed.Message
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func joinURL(base string, path string) string {
	return strings.TrimRight(base, "/") + path
}

// do performs one request with no retry. Any error it returns is a transport
// failure: the remote never produced a complete response.
func do(ctx context.Context, client *http.Client, method string, url string, header http.Header, payload any) (response, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return response{}, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return response{}, fmt.Errorf("build request: %w", err)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if requestID := middleware.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set(middleware.RequestIDHeader, requestID)
	}

	resp, err := client.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}

	return response{status: resp.StatusCode, body: data}, nil
}
