// Package deviceapi is the HTTP transport shared by the device directory and
// credential provisioning clients.
package deviceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/door-access-manager/backend/internal/session"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 4 << 20

// Config holds the configuration for the device API.
type Config struct {
	// BaseURL is the device API base URL
	BaseURL string

	// Timeout for API requests. Ignored when HTTPClient is set.
	Timeout time.Duration

	// HTTPClient overrides the default client
	HTTPClient *http.Client
}

// Client sends authenticated JSON requests to the device API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// Unauthorized reports whether the API rejected the token.
func (e *StatusError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// NewClient creates a new device API client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("deviceapi: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("deviceapi: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// Post sends body as JSON to path and returns the raw response body of a 2xx
// response. Non-2xx responses yield a *StatusError carrying the API's error
// message when the body has one.
func (c *Client) Post(ctx context.Context, sess *session.Session, path string, body any) ([]byte, error) {
	if err := session.Validate(sess); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := c.newRequest(ctx, sess, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return data, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	return data, nil
}

// Probe reports whether the API base URL answers at all.
func (c *Client) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return false
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return resp.StatusCode < 500
}

// newRequest creates a new HTTP request with authentication.
func (c *Client) newRequest(ctx context.Context, sess *session.Session, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+sess.Token)
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

// errorMessage pulls {"error": "..."} or {"message": "..."} out of a body.
func errorMessage(data []byte) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return strings.TrimSpace(string(data))
	}
	if envelope.Error != "" {
		return envelope.Error
	}
	return envelope.Message
}

// IsUnauthorized reports whether err is a 401/403 StatusError.
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Unauthorized()
}
