package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/connectors/rest"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func testConnector() *Connector {
	return New(rest.Options{RatePerSecond: -1, Timeout: 2 * time.Second})
}

func testCreds(srv *httptest.Server) domain.CredentialMap {
	return domain.CredentialMap{
		KeyURL:      srv.URL,
		KeyUsername: "alice@example.com",
		KeyAPIToken: "secret",
	}
}

func pageJSON(id, spaceKey, title, body string, when time.Time) map[string]any {
	return map[string]any{
		"id":    id,
		"type":  "page",
		"title": title,
		"space": map[string]any{"key": spaceKey, "name": spaceKey + " Space"},
		"body":  map[string]any{"storage": map[string]any{"value": body}},
		"version": map[string]any{
			"number": 3,
			"when":   when.Format(time.RFC3339),
		},
		"history": map[string]any{
			"createdDate": when.Add(-time.Hour).Format(time.RFC3339),
			"createdBy":   map[string]any{"displayName": "Alice"},
		},
		"_links": map[string]any{"webui": "/spaces/" + spaceKey + "/pages/" + id},
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

// offsetServer serves a search over pages() in result pages of size,
// linking to the next offset. A set fail flag rejects every later page.
func offsetServer(t *testing.T, pages func() []any, size int, fail *atomic.Bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, searchPath, r.URL.Path)
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		if start > 0 && fail != nil && fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		all := pages()
		start = min(start, len(all))
		end := min(start+size, len(all))
		body := map[string]any{"results": all[start:end]}
		if end < len(all) {
			body["_links"] = map[string]any{"next": "/wiki/rest/api/content/search?start=" + strconv.Itoa(end)}
		}
		writeJSON(t, w, body)
	}))
}

func externalIDs(docs []domain.Document) []string {
	ids := make([]string, len(docs))
	for i := range docs {
		ids[i] = docs[i].ExternalID
	}
	return ids
}

func TestConnector_Metadata(t *testing.T) {
	c := testConnector()
	assert.Equal(t, domain.SourceTypeWiki, c.Type())

	d := c.Descriptor()
	assert.Equal(t, domain.SourceTypeWiki, d.SourceType)
	assert.ElementsMatch(t, []string{KeyURL, KeyUsername, KeyAPIToken}, d.RequiredCredentialKeys())
}

func TestConnector_IsConfigured(t *testing.T) {
	c := testConnector()
	assert.True(t, c.IsConfigured(domain.CredentialMap{KeyURL: "u", KeyUsername: "n", KeyAPIToken: "t"}))
	assert.False(t, c.IsConfigured(domain.CredentialMap{KeyURL: "u", KeyUsername: "n"}))
	assert.False(t, c.IsConfigured(domain.CredentialMap{KeyURL: "u", KeyUsername: "n", KeyAPIToken: ""}))
	assert.False(t, c.IsConfigured(nil))
}

func TestConnector_TestConnection(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, spacePath, r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		writeJSON(t, w, map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	c := testConnector()
	assert.True(t, c.TestConnection(context.Background(), testCreds(srv)))
	assert.Equal(t, int32(1), calls.Load())

	// Incomplete credentials do no I/O.
	assert.False(t, c.TestConnection(context.Background(), domain.CredentialMap{KeyURL: srv.URL}))
	assert.Equal(t, int32(1), calls.Load())
}

func TestConnector_TestConnection_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	assert.False(t, testConnector().TestConnection(context.Background(), testCreds(srv)))
}

func TestConnector_FetchAll(t *testing.T) {
	when := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, searchPath, r.URL.Path)
		if r.URL.Query().Get("start") == "" {
			assert.Equal(t, "type = page and space.type = global order by lastModified asc", r.URL.Query().Get("cql"))
			writeJSON(t, w, map[string]any{
				"results": []any{pageJSON("1", "ENG", "Runbook", "<p>Restart the <b>service</b></p>", when)},
				"_links":  map[string]any{"next": "/rest/api/content/search?start=1", "context": "/wiki"},
			})
			return
		}
		writeJSON(t, w, map[string]any{
			"results": []any{
				pageJSON("2", "ENG", "Design", "<h1>Plan</h1><p>Ship it</p>", when),
				pageJSON("3", "OPS", "Empty", "<p> </p>", when),
				json.RawMessage(`{"id": "4", "version": {"when": "not-a-time"}}`),
			},
		})
	}))
	defer srv.Close()

	result, err := testConnector().FetchAll(context.Background(), testCreds(srv), nil)
	require.NoError(t, err)
	require.Len(t, result.Documents, 2)

	doc := result.Documents[0]
	assert.Equal(t, "1", doc.ExternalID)
	assert.Equal(t, "Runbook", doc.Title)
	assert.Equal(t, "Restart the service", doc.Content)
	assert.Equal(t, domain.DocumentTypePage, doc.DocumentType)
	assert.Equal(t, srv.URL+"/wiki/spaces/ENG/pages/1", doc.SourceURL)
	assert.Equal(t, when, doc.UpdatedAt)
	assert.Equal(t, "ENG", doc.Metadata["confluence.space_key"])
	assert.Equal(t, "Alice", doc.Metadata["confluence.author"])
	assert.Equal(t, "2", result.Documents[1].ExternalID)

	require.Len(t, result.Skipped, 2)
	assert.Equal(t, "3", result.Skipped[0].ExternalID)
	assert.Equal(t, "empty content", result.Skipped[0].Reason)
	assert.Equal(t, "4", result.Skipped[1].ExternalID)
	assert.Contains(t, result.Skipped[1].Reason, "malformed page")
	assert.Empty(t, result.NextCursor)
}

func TestConnector_FetchAll_ConfiguredSpaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `type = page and space in ("DOCS") order by lastModified asc`, r.URL.Query().Get("cql"))
		writeJSON(t, w, map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	result, err := testConnector().FetchAll(context.Background(), testCreds(srv), map[string]string{ConfigSpaces: " DOCS , "})
	require.NoError(t, err)
	assert.Empty(t, result.Documents)
}

func TestConnector_FetchAll_AuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "Basic authentication failed"}`))
	}))
	defer srv.Close()

	_, err := testConnector().FetchAll(context.Background(), testCreds(srv), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConnector)

	var ce *domain.ConnectorError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.IsAuth())
	assert.Contains(t, err.Error(), "authentication failed")
}

func TestConnector_FetchAll_LaterFailureLeavesCursor(t *testing.T) {
	when := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	pages := []any{
		pageJSON("1", "A", "One", "one", when),
		pageJSON("2", "A", "Two", "two", when.Add(time.Minute)),
		pageJSON("3", "B", "Three", "three", when.Add(2*time.Minute)),
		pageJSON("4", "B", "Four", "four", when.Add(3*time.Minute)),
	}
	var failing atomic.Bool
	failing.Store(true)
	srv := offsetServer(t, func() []any { return pages }, 2, &failing)
	defer srv.Close()

	c := testConnector()
	result, err := c.FetchAll(context.Background(), testCreds(srv), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, externalIDs(result.Documents))
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "search", result.Skipped[0].ExternalID)
	require.NotEmpty(t, result.NextCursor, "the unread tail stays reachable")

	var state searchCursor
	require.NoError(t, rest.DecodeCursor(result.NextCursor, &state))
	assert.True(t, state.Since.IsZero())
	assert.True(t, state.After.Equal(when.Add(time.Minute)))
	assert.Equal(t, []string{"2"}, state.IDs)

	failing.Store(false)
	tail, err := c.FetchSince(context.Background(), testCreds(srv), nil, time.Now(), result.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4"}, externalIDs(tail.Documents))
	assert.Empty(t, tail.NextCursor)
}

func TestConnector_FetchAll_LaterFailureBeforeProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") != "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(t, w, map[string]any{
			"results": []any{json.RawMessage(`{"id": "1", "version": {"when": "not-a-time"}}`)},
			"_links":  map[string]any{"next": "/wiki/rest/api/content/search?start=1"},
		})
	}))
	defer srv.Close()

	_, err := testConnector().FetchAll(context.Background(), testCreds(srv), nil)
	assert.ErrorIs(t, err, domain.ErrConnector)
}

func TestConnector_FetchAll_BadURL(t *testing.T) {
	creds := domain.CredentialMap{KeyURL: "not a url", KeyUsername: "u", KeyAPIToken: "t"}
	_, err := testConnector().FetchAll(context.Background(), creds, nil)
	assert.ErrorIs(t, err, domain.ErrCredential)
}

func TestConnector_FetchAll_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testConnector().FetchAll(ctx, testCreds(srv), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnector_FetchSince(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, searchPath, r.URL.Path)
		cql := r.URL.Query().Get("cql")
		assert.Contains(t, cql, `lastModified >= "2026-03-01 00:00"`)
		assert.Contains(t, cql, `space in ("ENG")`)
		assert.True(t, strings.HasSuffix(cql, "order by lastModified asc"))
		writeJSON(t, w, map[string]any{
			"results": []any{
				pageJSON("old", "ENG", "Old", "stale", since.Add(-time.Hour)),
				pageJSON("new", "ENG", "New", "fresh", since.Add(time.Minute)),
				pageJSON("edge", "ENG", "Edge", "exact", since),
			},
		})
	}))
	defer srv.Close()

	result, err := testConnector().FetchSince(context.Background(), testCreds(srv),
		map[string]string{ConfigSpaces: "ENG"}, since, "")
	require.NoError(t, err)

	var ids []string
	for _, d := range result.Documents {
		assert.False(t, d.UpdatedAt.Before(since))
		ids = append(ids, d.ExternalID)
	}
	assert.Equal(t, []string{"new", "edge"}, ids)
	assert.Empty(t, result.NextCursor)
}

func TestConnector_FetchSince_NothingChanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	result, err := testConnector().FetchSince(context.Background(), testCreds(srv), nil, time.Now(), "")
	require.NoError(t, err)
	assert.Empty(t, result.Documents)
	assert.Empty(t, result.Skipped)
}

func TestConnector_FetchSince_CursorResumes(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var searches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := searches.Add(1)
		if r.URL.Query().Get("start") == "" {
			if n > 1 {
				assert.Contains(t, r.URL.Query().Get("cql"), `lastModified >= "2026-03-01 00:01"`)
			}
			writeJSON(t, w, map[string]any{
				"results": []any{pageJSON("1", "ENG", "One", "one", since.Add(time.Minute))},
				"_links":  map[string]any{"next": "/rest/api/content/search?start=50", "context": "/wiki"},
			})
			return
		}
		writeJSON(t, w, map[string]any{
			"results": []any{pageJSON("2", "ENG", "Two", "two", since.Add(2*time.Minute))},
		})
	}))
	defer srv.Close()

	c := testConnector()
	cfg := map[string]string{ConfigMaxPages: "1"}

	first, err := c.FetchSince(context.Background(), testCreds(srv), cfg, since, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, externalIDs(first.Documents))
	require.NotEmpty(t, first.NextCursor)

	// The cursor takes precedence even when since moves on.
	second, err := c.FetchSince(context.Background(), testCreds(srv), cfg, since.Add(time.Hour), first.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, externalIDs(second.Documents))
	assert.Empty(t, second.NextCursor)
	assert.Equal(t, int32(3), searches.Load())
}

func TestConnector_FetchSince_FailedPageLeavesCursor(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") == "" {
			writeJSON(t, w, map[string]any{
				"results": []any{pageJSON("1", "ENG", "One", "one", since)},
				"_links":  map[string]any{"next": "/wiki/rest/api/content/search?start=50", "context": "/wiki"},
			})
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	result, err := testConnector().FetchSince(context.Background(), testCreds(srv), nil, since, "")
	require.NoError(t, err)
	require.Len(t, result.Documents, 1)
	require.Len(t, result.Skipped, 1)
	assert.NotEmpty(t, result.NextCursor)

	var state searchCursor
	require.NoError(t, rest.DecodeCursor(result.NextCursor, &state))
	assert.True(t, state.Since.Equal(since))
	assert.True(t, state.After.Equal(since))
	assert.Equal(t, []string{"1"}, state.IDs)
}

func TestConnector_FetchSince_EditedPageDoesNotShiftResume(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(m int) time.Time { return since.Add(time.Duration(m) * time.Minute) }

	var mu sync.Mutex
	pages := []any{
		pageJSON("1", "ENG", "One", "one", at(1)),
		pageJSON("2", "ENG", "Two", "two", at(2)),
		pageJSON("3", "ENG", "Three", "three", at(3)),
		pageJSON("4", "ENG", "Four", "four", at(4)),
		pageJSON("5", "ENG", "Five", "five", at(5)),
	}
	srv := offsetServer(t, func() []any {
		mu.Lock()
		defer mu.Unlock()
		return pages
	}, 2, nil)
	defer srv.Close()

	c := testConnector()
	cfg := map[string]string{ConfigMaxPages: "1"}

	first, err := c.FetchSince(context.Background(), testCreds(srv), cfg, since, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, externalIDs(first.Documents))
	require.NotEmpty(t, first.NextCursor)

	// Page 1 is edited and moves to the end of the ordering.
	mu.Lock()
	pages = append(pages[1:], pageJSON("1", "ENG", "One", "one, edited", at(10)))
	mu.Unlock()

	delivered := map[string]int{}
	cursor := first.NextCursor
	for calls := 0; cursor != "" && calls < 10; calls++ {
		next, err := c.FetchSince(context.Background(), testCreds(srv), cfg, at(20), cursor)
		require.NoError(t, err)
		for _, id := range externalIDs(next.Documents) {
			delivered[id]++
		}
		cursor = next.NextCursor
	}

	assert.Empty(t, cursor)
	assert.Equal(t, map[string]int{"1": 1, "3": 1, "4": 1, "5": 1}, delivered)
}

func TestConnector_FetchSince_UnreadableCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("cql"))
		writeJSON(t, w, map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	_, err := testConnector().FetchSince(context.Background(), testCreds(srv), nil, time.Now(), "garbage")
	require.NoError(t, err)
}

func TestBuildCQL(t *testing.T) {
	since := time.Date(2026, 1, 2, 3, 4, 59, 0, time.FixedZone("CET", 3600))
	assert.Equal(t,
		`lastModified >= "2026-01-01 14:04" and type = page and space.type = global order by lastModified asc`,
		buildCQL(since, nil))
	assert.Equal(t,
		`lastModified >= "2026-01-01 14:04" and type = page and space in ("A","B") order by lastModified asc`,
		buildCQL(since, []string{"A", "B"}))
	assert.Equal(t, "type = page and space.type = global order by lastModified asc", buildCQL(time.Time{}, nil))
}

func TestParseConfig(t *testing.T) {
	c := ParseConfig(map[string]string{ConfigSpaces: "A, B,,", ConfigMaxPages: "7"})
	assert.Equal(t, []string{"A", "B"}, c.Spaces)
	assert.Equal(t, 7, c.MaxPages)

	c = ParseConfig(map[string]string{ConfigMaxPages: "-3"})
	assert.Nil(t, c.Spaces)
	assert.Equal(t, DefaultMaxPages, c.MaxPages)
}
