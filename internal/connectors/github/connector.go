package github

import (
	"context"
	"fmt"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-ingest/internal/connectors/rest"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector fetches documentation files from GitHub repositories.
type Connector struct {
	opts rest.Options
}

// New creates a code-host connector.
func New(opts rest.Options) *Connector {
	return &Connector{opts: opts}
}

// Type returns the code-host source type.
func (c *Connector) Type() domain.SourceType {
	return domain.SourceTypeCodeHost
}

// Descriptor describes credential and config keys.
func (c *Connector) Descriptor() domain.ConnectorType {
	return descriptor()
}

// IsConfigured reports whether organisation and token are present.
func (c *Connector) IsConfigured(creds domain.CredentialMap) bool {
	return creds.HasAll(requiredKeys)
}

// TestConnection fetches the organisation.
func (c *Connector) TestConnection(ctx context.Context, creds domain.CredentialMap) bool {
	if !c.IsConfigured(creds) {
		return false
	}
	client, err := NewClient(creds, c.opts)
	if err != nil {
		logger.Debug("github: test connection: %v", err)
		return false
	}
	if _, err := client.GetOrganization(ctx); err != nil {
		logger.Debug("github: test connection: %v", err)
		return false
	}
	return true
}

// FetchAll probes every active repository of the organisation.
func (c *Connector) FetchAll(
	ctx context.Context, creds domain.CredentialMap, cfg map[string]string,
) (*domain.FetchResult, error) {
	return c.fetch(ctx, creds, cfg, time.Time{})
}

// FetchSince probes repositories pushed or updated at or after since.
// The cursor is ignored; repository listings are always read in full.
func (c *Connector) FetchSince(
	ctx context.Context, creds domain.CredentialMap, cfg map[string]string, since time.Time, _ string,
) (*domain.FetchResult, error) {
	return c.fetch(ctx, creds, cfg, since)
}

func (c *Connector) fetch(
	ctx context.Context, creds domain.CredentialMap, cfg map[string]string, since time.Time,
) (*domain.FetchResult, error) {
	client, err := NewClient(creds, c.opts)
	if err != nil {
		return nil, err
	}
	conf := ParseConfig(cfg)
	result := &domain.FetchResult{}

	repos, err := listRepos(ctx, client, result)
	if err != nil {
		return nil, err
	}
	repos = FilterRepos(repos, since)

	// Probes write to their own slot so documents keep listing order.
	probed := make([]*domain.FetchResult, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(conf.Workers)
	for i, repo := range repos {
		g.Go(func() error {
			r, err := ProbeRepo(gctx, client, repo, conf.PathGroups)
			if err != nil {
				return err
			}
			probed[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("github: probe repositories: %w", err)
	}

	for _, r := range probed {
		result.Documents = append(result.Documents, r.Documents...)
		result.Skipped = append(result.Skipped, r.Skipped...)
	}

	logger.Info("github: fetched %d files from %d repositories in %s, skipped %d",
		len(result.Documents), len(repos), client.Org(), len(result.Skipped))
	return result, nil
}

// listRepos reads every page of the organisation's repositories. A
// failure on the first page is fatal; later pages fail soft.
func listRepos(ctx context.Context, client *Client, result *domain.FetchResult) ([]*gh.Repository, error) {
	var all []*gh.Repository
	for page := 1; page != 0; {
		repos, next, err := client.ListOrgReposPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("github: list repositories: %w", ctx.Err())
			}
			if page == 1 {
				return nil, rest.ConnectorError(domain.SourceTypeCodeHost, "list repositories", err)
			}
			logger.Warn("github: listing page %d failed, keeping %d repositories: %v", page, len(all), err)
			result.Skip(fmt.Sprintf("repos:page=%d", page), err.Error())
			return all, nil
		}
		all = append(all, repos...)
		page = next
	}
	return all, nil
}
