package domain

import "time"

// Document is a normalised unit of content produced by a connector.
// It is transient: the engine hands it to the ingestion consumer and
// keeps nothing.
type Document struct {
	// ExternalID is the provider's stable identifier (issue key, page ID,
	// "owner/repo/path").
	ExternalID string `json:"external_id"`

	// Title is the human-readable title.
	Title string `json:"title"`

	// Content is plain text, HTML already stripped.
	Content string `json:"content"`

	// SourceURL links back to the item in the provider's UI.
	SourceURL string `json:"source_url,omitempty"`

	// DocumentType is "page", "issue" or "file".
	DocumentType string `json:"document_type"`

	// Metadata holds string or number values. Keys are namespaced
	// "<provider>.<key>", e.g. "jira.project".
	Metadata map[string]any `json:"metadata,omitempty"`

	// UpdatedAt is the provider's last-modified time.
	UpdatedAt time.Time `json:"updated_at"`
}

// Document types produced by the built-in connectors.
const (
	DocumentTypePage  = "page"
	DocumentTypeIssue = "issue"
	DocumentTypeFile  = "file"
)

// SkippedItem records an item a connector could not turn into a Document.
type SkippedItem struct {
	// ExternalID identifies the item, or the page/request that failed.
	ExternalID string

	// Reason says why it was skipped.
	Reason string
}

// FetchResult is a connector's output for one fetch call.
type FetchResult struct {
	// Documents is every document produced, in provider order.
	Documents []Document

	// Skipped lists per-item failures.
	Skipped []SkippedItem

	// NextCursor is the continuation for the next call. Empty when drained.
	NextCursor string
}

// Skip appends a skipped item.
func (r *FetchResult) Skip(externalID, reason string) {
	r.Skipped = append(r.Skipped, SkippedItem{ExternalID: externalID, Reason: reason})
}

// SyncMode says which connector operation a sync used.
type SyncMode string

const (
	// SyncModeFull is a FetchAll run.
	SyncModeFull SyncMode = "full"

	// SyncModeIncremental is a FetchSince run.
	SyncModeIncremental SyncMode = "incremental"
)

// SyncResult is the outcome of one sync reported to the caller.
type SyncResult struct {
	DataSourceID       string
	Status             SyncStatus
	Mode               SyncMode
	DocumentsProcessed int
	DocumentsSkipped   int
	LastSync           *time.Time
	Message            string
	Duration           time.Duration
}
