package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/sercha-ingest/internal/connectors/rest"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// Client wraps the go-github client with rate limiting and error mapping.
type Client struct {
	gh          *gh.Client
	org         string
	rateLimiter *RateLimiter
}

// NewClient builds a client from credentials. A username selects Basic
// authentication; otherwise the token is sent as a bearer token.
func NewClient(creds domain.CredentialMap, opts rest.Options) (*Client, error) {
	org := strings.TrimSpace(creds[KeyOrg])
	token := strings.TrimSpace(creds[KeyToken])
	if org == "" || token == "" {
		return nil, fmt.Errorf("%w: %s and %s are required", domain.ErrCredential, KeyOrg, KeyToken)
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = rest.DefaultTimeout
	}

	var transport http.RoundTripper
	if username := strings.TrimSpace(creds[KeyUsername]); username != "" {
		transport = &gh.BasicAuthTransport{Username: username, Password: token, Transport: base}
	} else {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   base,
		}
	}

	client := gh.NewClient(&http.Client{Timeout: timeout, Transport: transport})
	if opts.UserAgent != "" {
		client.UserAgent = opts.UserAgent
	} else {
		client.UserAgent = rest.DefaultUserAgent
	}

	if apiURL := strings.TrimSpace(creds[KeyAPIURL]); apiURL != "" {
		if _, err := rest.ParseBaseURL(apiURL); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrCredential, KeyAPIURL, err)
		}
		enterprise, err := client.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrCredential, KeyAPIURL, err)
		}
		client = enterprise
	}

	return &Client{
		gh:          client,
		org:         org,
		rateLimiter: NewRateLimiter(opts.RatePerSecond),
	}, nil
}

// Org returns the organisation login.
func (c *Client) Org() string {
	return c.org
}

// RateLimiter returns the rate limiter for external access.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// GetOrganization fetches the configured organisation.
func (c *Client) GetOrganization(ctx context.Context) (*gh.Organization, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	org, resp, err := c.gh.Organizations.Get(ctx, c.org)
	c.updateRateLimitFromResponse(resp)
	if err != nil {
		return nil, wrapError(err, "get organisation")
	}
	return org, nil
}

// ListOrgReposPage fetches one page of the organisation's repositories.
// The returned next page is 0 on the last page.
func (c *Client) ListOrgReposPage(ctx context.Context, page int) ([]*gh.Repository, int, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	opts := &gh.RepositoryListByOrgOptions{
		Type:        "all",
		Sort:        "pushed",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 100, Page: page},
	}
	repos, resp, err := c.gh.Repositories.ListByOrg(ctx, c.org, opts)
	c.updateRateLimitFromResponse(resp)
	if err != nil {
		return nil, 0, wrapError(err, "list repositories")
	}
	return repos, resp.NextPage, nil
}

// GetFile fetches a file on ref. found is false when the path does not
// exist or is a directory.
func (c *Client) GetFile(
	ctx context.Context, owner, repo, path, ref string,
) (file *gh.RepositoryContent, found bool, err error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("rate limit wait: %w", err)
	}

	opts := &gh.RepositoryContentGetOptions{Ref: ref}
	content, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, opts)
	c.updateRateLimitFromResponse(resp)
	if err != nil {
		wrapped := wrapError(err, "get contents")
		if rest.IsNotFound(wrapped) {
			return nil, false, nil
		}
		return nil, false, wrapped
	}
	if content == nil || content.GetType() != "file" {
		return nil, false, nil
	}
	return content, true, nil
}

// updateRateLimitFromResponse updates the rate limiter from GitHub response headers.
func (c *Client) updateRateLimitFromResponse(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	c.rateLimiter.UpdateFromResponse(resp.Response)
}

func requestURL(resp *http.Response) string {
	if resp == nil || resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	return resp.Request.URL.Redacted()
}
