// Package registration informs the scanned registration endpoint about the
// push subscription.
package registration

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

	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
	"github.com/goliatone/go-pushrelay/pkg/secrets"
)

// ErrInvalidURL is returned for anything other than an absolute http(s) URL.
var ErrInvalidURL = errors.New("registration: url must be http or https")

// ValidateURL parses raw and accepts only absolute http(s) URLs with a host.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrInvalidURL
	}
	if u.Host == "" {
		return nil, ErrInvalidURL
	}
	return u, nil
}

// Client posts subscription payloads to registration endpoints.
type Client struct {
	client  *http.Client
	headers map[string]string
	timeout time.Duration
	logger  logger.Logger
}

type Option func(*Client)

// WithHTTPClient allows injecting a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Client) {
		if c != nil {
			r.client = c
		}
	}
}

// WithTimeout bounds each registration request.
func WithTimeout(d time.Duration) Option {
	return func(r *Client) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(r *Client) {
		r.headers[key] = value
	}
}

func WithLogger(l logger.Logger) Option {
	return func(r *Client) {
		if l != nil {
			r.logger = l
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		headers: map[string]string{},
		timeout: 15 * time.Second,
		logger:  &logger.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.client == nil {
		c.client = &http.Client{}
	}
	return c
}

// Register POSTs payload as JSON to target. Any non-2xx status or transport
// failure is a RegistrationRequestFailed error; the caller retries by
// rescanning.
func (c *Client) Register(ctx context.Context, target string, payload domain.SubscriptionPayload) error {
	u, err := ValidateURL(target)
	if err != nil {
		return domain.RegistrationRequestFailed(0, err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.RegistrationRequestFailed(0, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return domain.RegistrationRequestFailed(0, fmt.Errorf("build request: %w", err))
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("registration request failed",
			logger.Field{Key: "url", Value: u.Host},
			logger.Field{Key: "error", Value: err},
		)
		return domain.RegistrationRequestFailed(0, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("registration rejected",
			logger.Field{Key: "url", Value: u.Host},
			logger.Field{Key: "status", Value: resp.StatusCode},
		)
		return domain.RegistrationRequestFailed(resp.StatusCode, nil)
	}
	c.logger.Info("registration accepted",
		logger.Field{Key: "url", Value: u.Host},
		logger.Field{Key: "endpoint", Value: secrets.Mask(payload.Endpoint)},
	)
	return nil
}
