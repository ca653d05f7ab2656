package github

import (
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// Credential keys.
const (
	KeyOrg      = "github_org"
	KeyToken    = "github_token"
	KeyUsername = "github_username"
	KeyAPIURL   = "github_api_url"
)

// Config keys.
const (
	ConfigPaths   = "paths"
	ConfigWorkers = "workers"
)

const (
	// DefaultWorkers is the default number of concurrent repository probes.
	DefaultWorkers = 4

	// MaxWorkers caps the configured worker count.
	MaxWorkers = 16

	// DefaultPaths are the documentation files probed in each repository.
	DefaultPaths = "README.md|README.rst|README.txt|README,CONTRIBUTING.md,ARCHITECTURE.md,API.md," +
		"docs/README.md|docs/index.md"

	// MinContentLength is the shortest file body worth indexing.
	MinContentLength = 50
)

var requiredKeys = []string{KeyOrg, KeyToken}

// Config holds the parsed configuration for a code-host source.
type Config struct {
	// PathGroups lists alternatives per group; the first present wins.
	PathGroups [][]string

	// Workers bounds concurrent repository probes.
	Workers int
}

// ParseConfig parses a data source's config map. Empty or invalid values
// fall back to defaults.
func ParseConfig(cfg map[string]string) Config {
	c := Config{
		PathGroups: parsePathGroups(cfg[ConfigPaths]),
		Workers:    DefaultWorkers,
	}
	if len(c.PathGroups) == 0 {
		c.PathGroups = parsePathGroups(DefaultPaths)
	}
	if n, err := strconv.Atoi(strings.TrimSpace(cfg[ConfigWorkers])); err == nil && n > 0 {
		c.Workers = min(n, MaxWorkers)
	}
	return c
}

// parsePathGroups parses "a|b,c" into [[a b] [c]].
func parsePathGroups(s string) [][]string {
	var groups [][]string
	for _, group := range strings.Split(s, ",") {
		var alts []string
		for _, p := range strings.Split(group, "|") {
			if p = strings.Trim(strings.TrimSpace(p), "/"); p != "" {
				alts = append(alts, p)
			}
		}
		if len(alts) > 0 {
			groups = append(groups, alts)
		}
	}
	return groups
}

func descriptor() domain.ConnectorType {
	return domain.ConnectorType{
		SourceType:  domain.SourceTypeCodeHost,
		Name:        "GitHub",
		Description: "Index documentation files from an organisation's repositories",
		CredentialKeys: []domain.ConfigKey{
			{Key: KeyOrg, Label: "Organisation", Description: "Organisation login", Required: true},
			{Key: KeyToken, Label: "Token", Description: "Personal access or OAuth token", Required: true, Secret: true},
			{Key: KeyUsername, Label: "Username", Description: "Send the token with Basic auth as this user"},
			{Key: KeyAPIURL, Label: "API URL", Description: "GitHub Enterprise API URL"},
		},
		ConfigKeys: []domain.ConfigKey{
			{Key: ConfigPaths, Label: "Paths", Description: "Comma-separated path groups, alternatives split by |",
				Default: DefaultPaths},
			{Key: ConfigWorkers, Label: "Workers", Description: "Concurrent repository probes",
				Default: strconv.Itoa(DefaultWorkers)},
		},
	}
}
