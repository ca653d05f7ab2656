package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for 429 and 503 responses.
	MaxRetries = 3

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 4 << 10

	// DefaultUserAgent identifies requests to providers.
	DefaultUserAgent = "sercha-ingest"
)

// Options configures a Client.
type Options struct {
	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration

	// RatePerSecond is the proactive request rate. Defaults to DefaultRate.
	RatePerSecond float64

	// Burst is the token bucket size. Defaults to DefaultBurst.
	Burst int

	// UserAgent overrides DefaultUserAgent.
	UserAgent string

	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.RatePerSecond == 0 {
		o.RatePerSecond = DefaultRate
	}
	if o.Burst <= 0 {
		o.Burst = DefaultBurst
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

// Client performs authenticated JSON GET requests against one provider.
type Client struct {
	base      *url.URL
	username  string
	token     string
	http      *http.Client
	limiter   *RateLimiter
	userAgent string
}

// NewClient creates a client for baseURL using HTTP Basic authentication.
func NewClient(baseURL, username, token string, opts Options) (*Client, error) {
	base, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	return &Client{
		base:      base,
		username:  username,
		token:     token,
		http:      &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		limiter:   NewRateLimiter(opts.RatePerSecond, opts.Burst),
		userAgent: opts.UserAgent,
	}, nil
}

// ParseBaseURL validates a provider base URL and strips trailing slashes.
func ParseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(raw), "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: base URL: %w", domain.ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: base URL %q must be http or https", domain.ErrInvalidInput, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q has no host", domain.ErrInvalidInput, raw)
	}
	return u, nil
}

// BaseURL returns the provider base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// RateLimiter returns the client's limiter.
func (c *Client) RateLimiter() *RateLimiter {
	return c.limiter
}

// Get fetches path (relative to the base URL) with query and decodes the
// JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return c.do(ctx, u, out)
}

// GetURL fetches a continuation link returned by the provider. Relative
// links are resolved against the base URL. Links to another host are
// rejected so credentials are never sent elsewhere.
func (c *Client) GetURL(ctx context.Context, ref string, out any) error {
	rel, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("parse link: %w", err)
	}
	u := c.base.ResolveReference(rel)
	if u.Host != c.base.Host {
		return fmt.Errorf("%w: link host %q differs from %q", domain.ErrInvalidInput, u.Host, c.base.Host)
	}
	return c.do(ctx, u, out)
}

func (c *Client) do(ctx context.Context, u *url.URL, out any) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		if c.username != "" || c.token != "" {
			req.SetBasicAuth(c.username, c.token)
		}

		logger.Debug("GET %s", redact(u))
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("GET %s: %w", redact(u), err)
		}

		if delay := c.limiter.Backoff(resp); delay > 0 {
			drain(resp)
			if attempt >= MaxRetries {
				return &RateLimitError{RetryAfter: delay, URL: redact(u)}
			}
			logger.Warn("rate limited by %s, retrying in %s", u.Host, delay)
			continue
		}

		return decode(resp, u, out)
	}
}

func decode(resp *http.Response, u *url.URL, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Status, body),
			URL:        redact(u),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", redact(u), err)
	}
	return nil
}

// errorMessage extracts a provider message from common Atlassian error
// bodies, falling back to the HTTP status text.
func errorMessage(status string, body []byte) string {
	var payload struct {
		Message       string   `json:"message"`
		ErrorMessages []string `json:"errorMessages"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if len(payload.ErrorMessages) > 0 {
			return strings.Join(payload.ErrorMessages, "; ")
		}
	}
	return status
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

// redact drops userinfo from u for logging.
func redact(u *url.URL) string {
	return u.Redacted()
}
