package domain

import "strings"

// SourceType identifies which kind of external tool a DataSource points at.
// The set is closed: every value must be resolvable by the connector registry.
type SourceType string

const (
	// SourceTypeWiki is a wiki (Confluence-style spaces and pages).
	SourceTypeWiki SourceType = "wiki"

	// SourceTypeIssueTracker is an issue tracker (Jira-style issues and comments).
	SourceTypeIssueTracker SourceType = "issue-tracker"

	// SourceTypeCodeHost is a code host (GitHub-style organisation repositories).
	SourceTypeCodeHost SourceType = "code-host"
)

// SourceTypes returns every supported source type in display order.
func SourceTypes() []SourceType {
	return []SourceType{SourceTypeWiki, SourceTypeIssueTracker, SourceTypeCodeHost}
}

// Valid returns true if t is one of the supported source types.
func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeWiki, SourceTypeIssueTracker, SourceTypeCodeHost:
		return true
	}
	return false
}

// ParseSourceType converts user input into a SourceType.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseSourceType(s string) (SourceType, error) {
	t := SourceType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrUnknownSourceType
	}
	return t, nil
}
