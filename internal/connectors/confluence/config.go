package confluence

import (
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// Credential keys.
const (
	KeyURL      = "wiki_url"
	KeyUsername = "wiki_username"
	KeyAPIToken = "wiki_api_token"
)

// Config keys.
const (
	ConfigSpaces   = "spaces"
	ConfigMaxPages = "max_pages"
)

const (
	// PageSize is the limit sent with content requests. Confluence caps
	// body-expanded content listings at 50.
	PageSize = 50

	// DefaultMaxPages bounds result pages per incremental call.
	DefaultMaxPages = 50
)

var requiredKeys = []string{KeyURL, KeyUsername, KeyAPIToken}

// Config is the parsed non-secret configuration of a wiki source.
type Config struct {
	Spaces   []string
	MaxPages int
}

// ParseConfig reads the data source config map. Unknown keys are ignored
// and invalid numbers fall back to defaults.
func ParseConfig(cfg map[string]string) Config {
	c := Config{
		Spaces:   splitList(cfg[ConfigSpaces]),
		MaxPages: DefaultMaxPages,
	}
	if n, err := strconv.Atoi(strings.TrimSpace(cfg[ConfigMaxPages])); err == nil && n > 0 {
		c.MaxPages = n
	}
	return c
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func descriptor() domain.ConnectorType {
	return domain.ConnectorType{
		SourceType:  domain.SourceTypeWiki,
		Name:        "Confluence",
		Description: "Index pages from Confluence spaces",
		CredentialKeys: []domain.ConfigKey{
			{Key: KeyURL, Label: "Site URL", Description: "e.g. https://example.atlassian.net", Required: true},
			{Key: KeyUsername, Label: "Username", Description: "Account email", Required: true},
			{Key: KeyAPIToken, Label: "API Token", Description: "Atlassian API token", Required: true, Secret: true},
		},
		ConfigKeys: []domain.ConfigKey{
			{Key: ConfigSpaces, Label: "Spaces", Description: "Comma-separated space keys (default: all global spaces)"},
			{
				Key:         ConfigMaxPages,
				Label:       "Max Pages",
				Description: "Result pages read per incremental sync",
				Default:     strconv.Itoa(DefaultMaxPages),
			},
		},
	}
}
