package jira

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// normaliseIssue converts one raw search hit into a Document. A non-empty
// reason means the issue was skipped.
func normaliseIssue(raw json.RawMessage, baseURL string) (domain.Document, string, string) {
	var is issue
	if err := json.Unmarshal(raw, &is); err != nil {
		return domain.Document{}, rawKey(raw), fmt.Sprintf("malformed issue: %v", err)
	}
	if is.Key == "" {
		return domain.Document{}, is.ID, "missing key"
	}
	f := is.Fields

	updated := f.Updated.Time
	if updated.IsZero() {
		updated = f.Created.Time
	}
	if updated.IsZero() {
		return domain.Document{}, is.Key, "missing last-modified time"
	}

	summary := strings.TrimSpace(f.Summary)
	description := richText(f.Description)
	if summary == "" && description == "" {
		return domain.Document{}, is.Key, "empty content"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Summary: %s\n\n", summary)
	if description != "" {
		fmt.Fprintf(&sb, "Description: %s\n\n", description)
	}
	if f.Priority != nil && f.Priority.Name != "" {
		fmt.Fprintf(&sb, "Priority: %s\n", f.Priority.Name)
	}
	if f.Assignee != nil && f.Assignee.DisplayName != "" {
		fmt.Fprintf(&sb, "Assignee: %s\n", f.Assignee.DisplayName)
	}
	if f.Status != nil && f.Status.Name != "" {
		fmt.Fprintf(&sb, "Status: %s\n", f.Status.Name)
	}
	if len(f.Labels) > 0 {
		fmt.Fprintf(&sb, "Labels: %s\n", strings.Join(f.Labels, ", "))
	}

	var comments []string
	for _, c := range f.Comment.Comments {
		body := richText(c.Body)
		if body == "" {
			continue
		}
		author := "unknown"
		if c.Author != nil && c.Author.DisplayName != "" {
			author = c.Author.DisplayName
		}
		comments = append(comments, author+": "+body)
	}
	if len(comments) > 0 {
		sb.WriteString("\nComments:\n")
		sb.WriteString(strings.Join(comments, "\n"))
	}

	metadata := map[string]any{
		"jira.key":      is.Key,
		"jira.comments": len(comments),
	}
	if f.Project != nil {
		metadata["jira.project"] = f.Project.Key
		if f.Project.Name != "" {
			metadata["jira.project_name"] = f.Project.Name
		}
	}
	setName(metadata, "jira.issue_type", f.IssueType)
	setName(metadata, "jira.status", f.Status)
	setName(metadata, "jira.priority", f.Priority)
	if f.Reporter != nil && f.Reporter.DisplayName != "" {
		metadata["jira.reporter"] = f.Reporter.DisplayName
	}
	if !f.Created.IsZero() {
		metadata["jira.created"] = f.Created.UTC().Format("2006-01-02T15:04:05Z")
	}

	title := is.Key
	if summary != "" {
		title += ": " + summary
	}

	return domain.Document{
		ExternalID:   is.Key,
		Title:        title,
		Content:      strings.TrimSpace(sb.String()),
		SourceURL:    strings.TrimRight(baseURL, "/") + "/browse/" + is.Key,
		DocumentType: domain.DocumentTypeIssue,
		Metadata:     metadata,
		UpdatedAt:    updated.UTC(),
	}, is.Key, ""
}

func setName(metadata map[string]any, key string, n *named) {
	if n != nil && n.Name != "" {
		metadata[key] = n.Name
	}
}

// rawKey best-effort extracts the issue key from a hit that failed to decode.
func rawKey(raw json.RawMessage) string {
	var partial struct {
		Key string `json:"key"`
		ID  any    `json:"id"`
	}
	if json.Unmarshal(raw, &partial) != nil {
		return ""
	}
	if partial.Key != "" {
		return partial.Key
	}
	if partial.ID != nil {
		return fmt.Sprint(partial.ID)
	}
	return ""
}
