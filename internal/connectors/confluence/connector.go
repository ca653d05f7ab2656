package confluence

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
	// cqlTimeFormat is the minute-precision date literal accepted by CQL.
	cqlTimeFormat = "2006-01-02 15:04"

	// queryLeeway widens the CQL lower bound. CQL dates are read in the
	// account's timezone, which can be up to 12 hours behind UTC.
	// Results are filtered on the exact timestamp afterwards.
	queryLeeway = 12 * time.Hour
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector fetches pages from Confluence.
type Connector struct {
	opts rest.Options
}

// New creates a wiki connector. opts apply to every client it builds.
func New(opts rest.Options) *Connector {
	return &Connector{opts: opts}
}

// Type returns the wiki source type.
func (c *Connector) Type() domain.SourceType {
	return domain.SourceTypeWiki
}

// Descriptor describes credential and config keys.
func (c *Connector) Descriptor() domain.ConnectorType {
	return descriptor()
}

// IsConfigured reports whether url, username and token are all present.
func (c *Connector) IsConfigured(creds domain.CredentialMap) bool {
	return creds.HasAll(requiredKeys)
}

// TestConnection lists a single space.
func (c *Connector) TestConnection(ctx context.Context, creds domain.CredentialMap) bool {
	if !c.IsConfigured(creds) {
		return false
	}
	client, err := c.client(creds)
	if err != nil {
		logger.Debug("confluence: test connection: %v", err)
		return false
	}
	if err := client.Get(ctx, spacePath, url.Values{"limit": {"1"}}, nil); err != nil {
		logger.Debug("confluence: test connection: %v", err)
		return false
	}
	return true
}

// FetchAll retrieves every page of the selected spaces, or of every global
// space when none are configured. If a later result page fails, the pages
// read so far are returned with a cursor that resumes after the last one.
func (c *Connector) FetchAll(
	ctx context.Context, creds domain.CredentialMap, cfg map[string]string,
) (*domain.FetchResult, error) {
	client, err := c.client(creds)
	if err != nil {
		return nil, err
	}
	conf := ParseConfig(cfg)

	f := newFetcher(client, conf.Spaces, 0)
	if err := f.search(ctx); err != nil {
		return nil, err
	}

	logger.Info("confluence: fetched %d pages, skipped %d", len(f.result.Documents), len(f.result.Skipped))
	return f.result, nil
}

// FetchSince retrieves pages modified at or after since. A non-empty cursor
// takes precedence and resumes after the last page it recorded.
func (c *Connector) FetchSince(
	ctx context.Context, creds domain.CredentialMap, cfg map[string]string, since time.Time, cursor string,
) (*domain.FetchResult, error) {
	client, err := c.client(creds)
	if err != nil {
		return nil, err
	}
	conf := ParseConfig(cfg)

	f := newFetcher(client, conf.Spaces, conf.MaxPages)
	f.since = since
	if cursor != "" {
		var state searchCursor
		switch err := rest.DecodeCursor(cursor, &state); {
		case err != nil:
			logger.Warn("confluence: discarding unreadable cursor: %v", err)
		case state.After.IsZero():
			logger.Warn("confluence: discarding cursor without a resume position")
		default:
			f.resume(state)
			logger.Debug("confluence: resuming after %s", state.After.Format(time.RFC3339Nano))
		}
	}

	if err := f.search(ctx); err != nil {
		return nil, err
	}

	logger.Info("confluence: fetched %d updated pages, skipped %d",
		len(f.result.Documents), len(f.result.Skipped))
	return f.result, nil
}

func (c *Connector) client(creds domain.CredentialMap) (*rest.Client, error) {
	client, err := rest.NewClient(creds[KeyURL], creds[KeyUsername], creds[KeyAPIToken], c.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrCredential, KeyURL, err)
	}
	return client, nil
}

// searchCursor resumes a search after the last page handed off.
type searchCursor struct {
	// Since is the lower bound of the original window, zero for a full crawl.
	Since time.Time `json:"since"`
	// After is the modification time of the last page handed off.
	After time.Time `json:"after"`
	// IDs are the pages handed off with modification time After.
	IDs []string `json:"ids,omitempty"`
}

// buildCQL selects pages ordered by modification time. A zero since
// selects every page.
func buildCQL(since time.Time, spaces []string) string {
	var clauses []string
	if !since.IsZero() {
		clauses = append(clauses, fmt.Sprintf(`lastModified >= "%s"`,
			since.Add(-queryLeeway).UTC().Format(cqlTimeFormat)))
	}
	clauses = append(clauses, "type = page")
	if len(spaces) > 0 {
		quoted := make([]string, len(spaces))
		for i, s := range spaces {
			quoted[i] = strconv.Quote(s)
		}
		clauses = append(clauses, fmt.Sprintf("space in (%s)", strings.Join(quoted, ",")))
	} else {
		clauses = append(clauses, "space.type = global")
	}
	return strings.Join(clauses, " and ") + " order by lastModified asc"
}

// fetcher runs one CQL search and accumulates its results. The first
// request, or any failure before a page has been handed off, is fatal.
// Later failures end the run with a skip entry and a cursor.
type fetcher struct {
	client   *rest.Client
	spaces   []string
	since    time.Time
	maxPages int // result pages that hand off pages; 0 means unbounded
	webBase  string
	result   *domain.FetchResult

	// after and afterIDs are the resume position.
	after    time.Time
	afterIDs map[string]bool

	// last and lastIDs track the newest page handed off so far.
	last    time.Time
	lastIDs []string

	index map[string]int
}

func newFetcher(client *rest.Client, spaces []string, maxPages int) *fetcher {
	return &fetcher{
		client:   client,
		spaces:   spaces,
		maxPages: maxPages,
		webBase:  client.BaseURL() + "/wiki",
		result:   &domain.FetchResult{},
		index:    make(map[string]int),
	}
}

func (f *fetcher) resume(state searchCursor) {
	f.since = state.Since
	f.after = state.After
	f.afterIDs = make(map[string]bool, len(state.IDs))
	for _, id := range state.IDs {
		f.afterIDs[id] = true
	}
	f.last = state.After
	f.lastIDs = append([]string(nil), state.IDs...)
}

func (f *fetcher) search(ctx context.Context) error {
	lower := f.since
	if !f.after.IsZero() {
		lower = f.after
	}
	query := url.Values{
		"cql":    {buildCQL(lower, f.spaces)},
		"expand": {contentExpand},
		"limit":  {strconv.Itoa(PageSize)},
	}

	var list contentList
	err := f.client.Get(ctx, searchPath, query, &list)
	for requests, productive := 0, 0; ; requests++ {
		if err != nil {
			return f.fail(ctx, requests, err)
		}
		if f.add(list) > 0 {
			productive++
		}

		next := nextLink(list.Links)
		if next == "" {
			return nil
		}
		if f.maxPages > 0 && productive >= f.maxPages {
			return f.setCursor()
		}
		list = contentList{}
		err = f.client.GetURL(ctx, next, &list)
	}
}

func (f *fetcher) fail(ctx context.Context, requests int, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("confluence: search content: %w", ctx.Err())
	}
	if requests == 0 || f.last.IsZero() {
		return rest.ConnectorError(domain.SourceTypeWiki, "search content", err)
	}
	logger.Warn("confluence: search content failed, keeping %d pages: %v", len(f.result.Documents), err)
	f.result.Skip("search", fmt.Sprintf("search content: %v", err))
	return f.setCursor()
}

func (f *fetcher) setCursor() error {
	if f.last.IsZero() {
		return nil
	}
	cursor, err := rest.EncodeCursor(searchCursor{Since: f.since, After: f.last, IDs: f.lastIDs})
	if err != nil {
		return err
	}
	f.result.NextCursor = cursor
	return nil
}

// add hands off the new pages of one result page and returns how many
// there were. A page seen twice in one run keeps its later version.
func (f *fetcher) add(list contentList) int {
	if list.Links.Base != "" {
		f.webBase = list.Links.Base
	}
	added := 0
	for _, raw := range list.Results {
		doc, id, reason := normalisePage(raw, f.webBase)
		if reason != "" {
			f.result.Skip(id, reason)
			continue
		}
		if !f.isNew(doc) {
			continue
		}
		if i, ok := f.index[doc.ExternalID]; ok {
			f.result.Documents[i] = doc
		} else {
			f.index[doc.ExternalID] = len(f.result.Documents)
			f.result.Documents = append(f.result.Documents, doc)
		}
		f.advance(doc.ExternalID, doc.UpdatedAt)
		added++
	}
	return added
}

func (f *fetcher) isNew(doc domain.Document) bool {
	if !f.after.IsZero() {
		if doc.UpdatedAt.Equal(f.after) {
			return !f.afterIDs[doc.ExternalID]
		}
		return doc.UpdatedAt.After(f.after)
	}
	return f.since.IsZero() || !doc.UpdatedAt.Before(f.since)
}

func (f *fetcher) advance(id string, at time.Time) {
	switch {
	case at.After(f.last):
		f.last = at
		f.lastIDs = []string{id}
	case at.Equal(f.last):
		f.lastIDs = append(f.lastIDs, id)
	}
}
