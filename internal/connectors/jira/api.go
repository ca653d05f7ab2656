package jira

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	searchPath = "/rest/api/2/search"
	myselfPath = "/rest/api/2/myself"

	searchFields = "summary,description,comment,priority,assignee,reporter," +
		"labels,status,issuetype,project,created,updated"
)

type searchResponse struct {
	StartAt    int               `json:"startAt"`
	MaxResults int               `json:"maxResults"`
	Total      int               `json:"total"`
	Issues     []json.RawMessage `json:"issues"`
}

type named struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
}

type issue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description"`
		Priority    *named          `json:"priority"`
		Assignee    *named          `json:"assignee"`
		Reporter    *named          `json:"reporter"`
		Status      *named          `json:"status"`
		IssueType   *named          `json:"issuetype"`
		Project     *named          `json:"project"`
		Labels      []string        `json:"labels"`
		Created     jiraTime        `json:"created"`
		Updated     jiraTime        `json:"updated"`
		Comment     struct {
			Comments []comment `json:"comments"`
		} `json:"comment"`
	} `json:"fields"`
}

type comment struct {
	Author *named          `json:"author"`
	Body   json.RawMessage `json:"body"`
}

// jiraTime parses Jira timestamps, which use a numeric zone without a
// colon ("2026-03-01T10:00:00.000+0000").
type jiraTime struct {
	time.Time
}

var jiraTimeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
}

func (t *jiraTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range jiraTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised time %q", s)
}

// richText returns the text of a description or comment body. API v2
// returns wiki markup strings; Atlassian Document Format objects are
// flattened to their text nodes.
func richText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var node adfNode
	if json.Unmarshal(raw, &node) != nil {
		return ""
	}
	var sb strings.Builder
	node.text(&sb)
	return strings.TrimSpace(sb.String())
}

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

func (n adfNode) text(sb *strings.Builder) {
	sb.WriteString(n.Text)
	for _, c := range n.Content {
		c.text(sb)
	}
	switch n.Type {
	case "paragraph", "heading", "listItem", "codeBlock", "blockquote", "hardBreak":
		sb.WriteString("\n")
	}
}
