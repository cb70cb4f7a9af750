//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oshokin/gat-runner/internal/config"
	"github.com/oshokin/gat-runner/internal/version"
)

// Client wraps http.Client with launcher defaults.
type Client struct {
	// http performs the requests; its Timeout covers reading the body too.
	http *http.Client
	// userAgent is sent with every request.
	userAgent string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets the timeout for each request.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// ErrUnreachable is returned when the request never got an HTTP response.
var ErrUnreachable = errors.New("remote host unreachable")

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	// URL is the requested address.
	URL string
	// Code is the HTTP status code.
	Code int
	// Status is the status line, e.g. "404 Not Found".
	Status string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected http status %s", e.URL, e.Status)
}

// NewClient builds a client with the default timeout.
func NewClient(opts ...Option) *Client {
	client := &Client{
		http: &http.Client{
			Timeout: config.DefaultTimeout,
		},
		userAgent: "gat-runner/" + version.Short(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.http.Timeout
}

// Get issues a GET request. The caller must close the body of a successful response.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	return c.do(req)
}

// PostForm sends form URL-encoded and asks for accept in return.
// The caller must close the body of a successful response.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	return c.do(req)
}

// do sends req and converts transport failures and non-2xx statuses into errors.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)

	response, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", req.URL.Redacted(), ErrUnreachable, err)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, response.Body, 4<<10)
		_ = response.Body.Close()

		return nil, &StatusError{
			URL:    req.URL.Redacted(),
			Code:   response.StatusCode,
			Status: response.Status,
		}
	}

	return response, nil
}
