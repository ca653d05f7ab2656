// Package confluence implements the wiki connector against the Confluence
// REST API.
//
// # Credentials
//
//   - wiki_url: site root, e.g. https://example.atlassian.net
//   - wiki_username: account email
//   - wiki_api_token: API token, sent with HTTP Basic authentication
//
// # Configuration
//
//   - spaces: comma-separated space keys. Default: every global space.
//   - max_pages: result pages read per incremental call. Default: 50.
//
// # Sync Operations
//
// Both syncs run one CQL search ordered by lastModified and follow
// _links.next. Full sync selects every page; incremental sync adds a
// lastModified lower bound and reads at most max_pages result pages.
//
// When a call stops early, on the page limit or a failed later page, the
// returned cursor records the modification time and IDs of the last page
// handed off. The next call searches from that time and drops what it
// already saw, so a page edited in between is picked up rather than
// shifting an offset.
//
// Page bodies are storage-format XHTML and are reduced to plain text.
// Pages whose text is empty are skipped.
package confluence
