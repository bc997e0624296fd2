//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/doorbell/internal/config"
	domain "github.com/oshokin/doorbell/internal/domain/door"
	"github.com/oshokin/doorbell/internal/version"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 1 << 10

// Client talks to doorbell-server on behalf of the embedded client.
type Client struct {
	// baseURL is the server root, without a trailing slash.
	baseURL string
	// http performs the requests.
	http *http.Client

	// callTimeout bounds short calls and pads long-polls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for server calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

var (
	// errAddressRequired is returned when the server URL is missing.
	errAddressRequired = errors.New("server URL must be provided")
	// ErrUnexpectedStatus is returned for non-200 responses.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrUnexpectedAnswer is returned when a long-poll answer is neither open nor punt.
	ErrUnexpectedAnswer = errors.New("unexpected long-poll answer")
)

// NewClient creates a client for the server at serverURL.
func NewClient(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errAddressRequired
	}

	if _, err := url.ParseRequestURI(serverURL); err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}

	client := &Client{
		baseURL:     strings.TrimRight(serverURL, "/"),
		http:        new(http.Client),
		callTimeout: config.DefaultRequestTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Ring reports a doorbell press.
func (c *Client) Ring(ctx context.Context) error {
	callCtx, cancel := c.callContext(ctx, 0)
	defer cancel()

	if _, err := c.get(callCtx, "/ring", nil); err != nil {
		return fmt.Errorf("ring: %w", err)
	}

	return nil
}

// LongPollOpen asks the server whether to fire the latch, letting it hold
// the request for up to timeout.
func (c *Client) LongPollOpen(ctx context.Context, timeout time.Duration) (domain.PollResult, error) {
	callCtx, cancel := c.callContext(ctx, timeout)
	defer cancel()

	query := url.Values{
		"timeout": {strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64)},
	}

	body, err := c.get(callCtx, "/longpoll_open", query)
	if err != nil {
		return "", fmt.Errorf("long-poll: %w", err)
	}

	switch result := domain.PollResult(body); result {
	case domain.PollOpen, domain.PollPunt:
		return result, nil
	default:
		return "", fmt.Errorf("long-poll: %w: %q", ErrUnexpectedAnswer, body)
	}
}

// get performs a GET request and returns the trimmed body of a 200 response.
func (c *Client) get(ctx context.Context, path string, query url.Values) (string, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", "doorbell-client/"+version.Short())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return strings.TrimSpace(string(body)), nil
}

// callContext returns a context bounded by wait plus the call timeout, or a
// cancellable child context when no call timeout is configured.
func (c *Client) callContext(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, wait+c.callTimeout)
}
