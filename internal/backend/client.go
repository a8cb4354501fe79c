// Package backend holds the HTTP clients of the two request backends. The
// caller's bearer token is taken from the context and forwarded.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/hrportal/internal/auth"
	"stealthcompany.com/hrportal/internal/metrics"
)

const maxErrorBody = 512

// StatusError is a non-2xx answer from a backend.
type StatusError struct {
	Backend    string
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned status %d", e.Backend, e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned status %d: %s", e.Backend, e.Operation, e.StatusCode, e.Body)
}

// client is the transport shared by both backends.
type client struct {
	name       string
	httpClient *http.Client
	baseURL    string
}

func newClient(name, baseURL string, timeout time.Duration) client {
	return client{
		name:       name,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// do sends one request and decodes a JSON answer into out when out is non-nil.
func (c client) do(ctx context.Context, operation, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s body: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := auth.TokenFromContext(ctx); token != "" {
		req.Header.Set(auth.AuthorizationHeader, auth.BearerPrefix+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordBackendRequest(c.name, operation, 0, duration)
		return fmt.Errorf("%s %s: %w", c.name, operation, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	metrics.RecordBackendRequest(c.name, operation, resp.StatusCode, duration)
	log.Debug().
		Str("backend", c.name).
		Str("operation", operation).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("Backend call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Backend:    c.name,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", c.name, operation, err)
	}
	return nil
}
