package jira

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/connectors/rest"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

const (
	// jqlTimeFormat is the minute-precision date literal accepted by JQL.
	jqlTimeFormat = "2006/01/02 15:04"

	// queryLeeway widens the JQL lower bound. JQL dates are read in the
	// user's timezone, which can be up to 12 hours behind UTC.
	queryLeeway = 12 * time.Hour
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector fetches issues from Jira.
type Connector struct {
	opts rest.Options
}

// New creates an issue-tracker connector.
func New(opts rest.Options) *Connector {
	return &Connector{opts: opts}
}

// Type returns the issue-tracker source type.
func (c *Connector) Type() domain.SourceType {
	return domain.SourceTypeIssueTracker
}

// Descriptor describes credential and config keys.
func (c *Connector) Descriptor() domain.ConnectorType {
	return descriptor()
}

// IsConfigured reports whether url, username and token are all present.
func (c *Connector) IsConfigured(creds domain.CredentialMap) bool {
	return creds.HasAll(requiredKeys)
}

// TestConnection fetches the authenticated user.
func (c *Connector) TestConnection(ctx context.Context, creds domain.CredentialMap) bool {
	if !c.IsConfigured(creds) {
		return false
	}
	client, err := c.client(creds)
	if err != nil {
		logger.Debug("jira: test connection: %v", err)
		return false
	}
	if err := client.Get(ctx, myselfPath, nil, nil); err != nil {
		logger.Debug("jira: test connection: %v", err)
		return false
	}
	return true
}

// FetchAll retrieves every issue visible to the account. If a later page
// fails, the issues read so far are returned with a cursor that resumes
// after the last of them.
func (c *Connector) FetchAll(
	ctx context.Context, creds domain.CredentialMap, cfg map[string]string,
) (*domain.FetchResult, error) {
	client, err := c.client(creds)
	if err != nil {
		return nil, err
	}
	conf := ParseConfig(cfg)

	s := newSearch(client, conf.Projects, 0)
	if err := s.run(ctx); err != nil {
		return nil, err
	}

	logger.Info("jira: fetched %d issues, skipped %d", len(s.result.Documents), len(s.result.Skipped))
	return s.result, nil
}

// FetchSince retrieves issues updated at or after since. A non-empty
// cursor takes precedence and resumes after the last issue it recorded.
func (c *Connector) FetchSince(
	ctx context.Context, creds domain.CredentialMap, cfg map[string]string, since time.Time, cursor string,
) (*domain.FetchResult, error) {
	client, err := c.client(creds)
	if err != nil {
		return nil, err
	}
	conf := ParseConfig(cfg)

	s := newSearch(client, conf.Projects, conf.MaxPages)
	s.since = since
	if cursor != "" {
		var state searchCursor
		switch err := rest.DecodeCursor(cursor, &state); {
		case err != nil:
			logger.Warn("jira: discarding unreadable cursor: %v", err)
		case state.After.IsZero():
			logger.Warn("jira: discarding cursor without a resume position")
		default:
			s.resume(state)
			logger.Debug("jira: resuming after %s (%d issues at that time)",
				state.After.Format(time.RFC3339Nano), len(state.Keys))
		}
	}

	if err := s.run(ctx); err != nil {
		return nil, err
	}

	logger.Info("jira: fetched %d updated issues, skipped %d", len(s.result.Documents), len(s.result.Skipped))
	return s.result, nil
}

func (c *Connector) client(creds domain.CredentialMap) (*rest.Client, error) {
	client, err := rest.NewClient(creds[KeyURL], creds[KeyUsername], creds[KeyAPIToken], c.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrCredential, KeyURL, err)
	}
	return client, nil
}

// searchCursor resumes a search after the last issue handed off. Results
// are ordered by update time then key, so the position survives issues
// being edited between calls.
type searchCursor struct {
	// Since is the lower bound of the original window, zero for a full crawl.
	Since time.Time `json:"since"`
	// After is the update time of the last issue handed off.
	After time.Time `json:"after"`
	// Keys are the issues handed off with update time After.
	Keys []string `json:"keys,omitempty"`
}

// buildJQL orders by update time and key. A zero since selects every issue.
func buildJQL(since time.Time, projects []string) string {
	var clauses []string
	if !since.IsZero() {
		clauses = append(clauses, fmt.Sprintf(`updated >= "%s"`,
			since.Add(-queryLeeway).UTC().Format(jqlTimeFormat)))
	}
	if len(projects) > 0 {
		quoted := make([]string, len(projects))
		for i, p := range projects {
			quoted[i] = strconv.Quote(p)
		}
		clauses = append(clauses, fmt.Sprintf("project in (%s)", strings.Join(quoted, ",")))
	}
	jql := strings.Join(clauses, " AND ")
	if jql != "" {
		jql += " "
	}
	return jql + "ORDER BY updated ASC, key ASC"
}

// search pages through one JQL query. The first request, or any failure
// before an issue has been handed off, is fatal. Later failures end the
// run with a skip entry and a cursor.
type search struct {
	client   *rest.Client
	projects []string
	since    time.Time
	maxPages int // pages that hand off issues; 0 means unbounded
	result   *domain.FetchResult

	// after and afterKeys are the resume position; issues at or before it
	// were handed off by an earlier call.
	after     time.Time
	afterKeys map[string]bool

	// last and lastKeys track the newest issue handed off so far.
	last     time.Time
	lastKeys []string

	// index maps a key to its position in result.Documents.
	index map[string]int
}

func newSearch(client *rest.Client, projects []string, maxPages int) *search {
	return &search{
		client:   client,
		projects: projects,
		maxPages: maxPages,
		result:   &domain.FetchResult{},
		index:    make(map[string]int),
	}
}

func (s *search) resume(state searchCursor) {
	s.since = state.Since
	s.after = state.After
	s.afterKeys = make(map[string]bool, len(state.Keys))
	for _, k := range state.Keys {
		s.afterKeys[k] = true
	}
	s.last = state.After
	s.lastKeys = append([]string(nil), state.Keys...)
}

func (s *search) run(ctx context.Context) error {
	lower := s.since
	if !s.after.IsZero() {
		lower = s.after
	}
	jql := buildJQL(lower, s.projects)

	startAt, productive := 0, 0
	for requests := 0; ; requests++ {
		if s.maxPages > 0 && productive >= s.maxPages {
			return s.setCursor()
		}

		var resp searchResponse
		err := s.client.Get(ctx, searchPath, url.Values{
			"jql":        {jql},
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(PageSize)},
			"fields":     {searchFields},
		}, &resp)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("jira: search issues: %w", ctx.Err())
			}
			if requests == 0 || s.last.IsZero() {
				return rest.ConnectorError(domain.SourceTypeIssueTracker, "search issues", err)
			}
			logger.Warn("jira: search at offset %d failed, keeping %d issues: %v",
				startAt, len(s.result.Documents), err)
			s.result.Skip(fmt.Sprintf("search:startAt=%d", startAt), fmt.Sprintf("search issues: %v", err))
			return s.setCursor()
		}

		if s.add(resp) > 0 {
			productive++
		}

		startAt += len(resp.Issues)
		if len(resp.Issues) == 0 || startAt >= resp.Total {
			return nil
		}
	}
}

func (s *search) setCursor() error {
	if s.last.IsZero() {
		return nil
	}
	cursor, err := rest.EncodeCursor(searchCursor{Since: s.since, After: s.last, Keys: s.lastKeys})
	if err != nil {
		return err
	}
	s.result.NextCursor = cursor
	return nil
}

// add hands off the new issues of one page and returns how many there were.
// An issue seen twice in one run keeps its later version.
func (s *search) add(resp searchResponse) int {
	base := s.client.BaseURL()
	added := 0
	for _, raw := range resp.Issues {
		doc, key, reason := normaliseIssue(raw, base)
		if reason != "" {
			s.result.Skip(key, reason)
			continue
		}
		if !s.isNew(doc) {
			continue
		}
		if i, ok := s.index[doc.ExternalID]; ok {
			s.result.Documents[i] = doc
		} else {
			s.index[doc.ExternalID] = len(s.result.Documents)
			s.result.Documents = append(s.result.Documents, doc)
		}
		s.advance(doc.ExternalID, doc.UpdatedAt)
		added++
	}
	return added
}

func (s *search) isNew(doc domain.Document) bool {
	if !s.after.IsZero() {
		if doc.UpdatedAt.Equal(s.after) {
			return !s.afterKeys[doc.ExternalID]
		}
		return doc.UpdatedAt.After(s.after)
	}
	return s.since.IsZero() || !doc.UpdatedAt.Before(s.since)
}

func (s *search) advance(key string, at time.Time) {
	switch {
	case at.After(s.last):
		s.last = at
		s.lastKeys = []string{key}
	case at.Equal(s.last):
		s.lastKeys = append(s.lastKeys, key)
	}
}
