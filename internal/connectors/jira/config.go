package jira

import (
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// Credential keys.
const (
	KeyURL      = "jira_url"
	KeyUsername = "jira_username"
	KeyAPIToken = "jira_api_token"
)

// Config keys.
const (
	ConfigProjects = "projects"
	ConfigMaxPages = "max_pages"
)

const (
	// PageSize is the maxResults sent with each search.
	PageSize = 100

	// DefaultMaxPages bounds result pages per incremental call.
	DefaultMaxPages = 50
)

var requiredKeys = []string{KeyURL, KeyUsername, KeyAPIToken}

// Config is the parsed non-secret configuration of an issue-tracker source.
type Config struct {
	Projects []string
	MaxPages int
}

// ParseConfig reads the data source config map. Project keys are
// upper-cased; invalid numbers fall back to defaults.
func ParseConfig(cfg map[string]string) Config {
	c := Config{MaxPages: DefaultMaxPages}
	for _, p := range strings.Split(cfg[ConfigProjects], ",") {
		if p = strings.TrimSpace(p); p != "" {
			c.Projects = append(c.Projects, strings.ToUpper(p))
		}
	}
	if n, err := strconv.Atoi(strings.TrimSpace(cfg[ConfigMaxPages])); err == nil && n > 0 {
		c.MaxPages = n
	}
	return c
}

func descriptor() domain.ConnectorType {
	return domain.ConnectorType{
		SourceType:  domain.SourceTypeIssueTracker,
		Name:        "Jira",
		Description: "Index issues and comments from Jira projects",
		CredentialKeys: []domain.ConfigKey{
			{Key: KeyURL, Label: "Site URL", Description: "e.g. https://example.atlassian.net", Required: true},
			{Key: KeyUsername, Label: "Username", Description: "Account email", Required: true},
			{Key: KeyAPIToken, Label: "API Token", Description: "Atlassian API token", Required: true, Secret: true},
		},
		ConfigKeys: []domain.ConfigKey{
			{Key: ConfigProjects, Label: "Projects", Description: "Comma-separated project keys (default: all)"},
			{
				Key:         ConfigMaxPages,
				Label:       "Max Pages",
				Description: "Result pages read per incremental sync",
				Default:     strconv.Itoa(DefaultMaxPages),
			},
		},
	}
}
