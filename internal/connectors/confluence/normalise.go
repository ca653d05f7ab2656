package confluence

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/connectors/rest"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// normalisePage converts one raw result into a Document. A non-empty
// reason means the page was skipped.
func normalisePage(raw json.RawMessage, webBase string) (domain.Document, string, string) {
	var p page
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Document{}, rawID(raw), fmt.Sprintf("malformed page: %v", err)
	}
	if p.ID == "" {
		return domain.Document{}, "", "missing id"
	}

	content := rest.StripHTML(p.Body.Storage.Value)
	if content == "" {
		return domain.Document{}, p.ID, "empty content"
	}

	updated := p.Version.When
	if updated.IsZero() {
		updated = p.History.CreatedDate
	}
	if updated.IsZero() {
		return domain.Document{}, p.ID, "missing last-modified time"
	}

	metadata := map[string]any{
		"confluence.page_id": p.ID,
	}
	if p.Space != nil {
		metadata["confluence.space_key"] = p.Space.Key
		if p.Space.Name != "" {
			metadata["confluence.space_name"] = p.Space.Name
		}
	}
	if p.Version.Number > 0 {
		metadata["confluence.version"] = p.Version.Number
	}
	if author := p.History.CreatedBy.DisplayName; author != "" {
		metadata["confluence.author"] = author
	}

	var sourceURL string
	if p.Links.WebUI != "" {
		sourceURL = strings.TrimRight(webBase, "/") + p.Links.WebUI
	}

	return domain.Document{
		ExternalID:   p.ID,
		Title:        strings.TrimSpace(p.Title),
		Content:      content,
		SourceURL:    sourceURL,
		DocumentType: domain.DocumentTypePage,
		Metadata:     metadata,
		UpdatedAt:    updated.UTC(),
	}, p.ID, ""
}

// rawID best-effort extracts an id from a result that failed to decode.
func rawID(raw json.RawMessage) string {
	var partial struct {
		ID any `json:"id"`
	}
	if json.Unmarshal(raw, &partial) != nil || partial.ID == nil {
		return ""
	}
	return fmt.Sprint(partial.ID)
}
