// Package jira implements the issue-tracker connector against the Jira
// REST API v2.
//
// Issues are read through the JQL search endpoint ordered by update time
// and key, so a full sync and an incremental sync share one paging loop:
//
//   - Full: every issue, optionally restricted with the "projects" config.
//   - Incremental: issues updated at or after the last successful sync.
//     At most "max_pages" result pages are read per call.
//
// When a call stops early, on the page limit or a failed later page, the
// returned cursor records the update time and keys of the last issue handed
// off. The next call queries from that time and drops what it already saw,
// so an issue edited in between moves past the cursor instead of shifting
// an offset.
//
// Each issue becomes one document whose content lists the summary,
// description, priority, assignee, status and labels, followed by the
// comments as "author: body" lines.
package jira
