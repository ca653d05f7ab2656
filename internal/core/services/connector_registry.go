package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/connectors/confluence"
	"github.com/custodia-labs/sercha-ingest/internal/connectors/github"
	"github.com/custodia-labs/sercha-ingest/internal/connectors/jira"
	"github.com/custodia-labs/sercha-ingest/internal/connectors/rest"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure ConnectorRegistry implements the interface.
var _ driven.ConnectorResolver = (*ConnectorRegistry)(nil)

// ConnectorRegistry maps each source type to its single connector.
type ConnectorRegistry struct {
	wiki         driven.Connector
	issueTracker driven.Connector
	codeHost     driven.Connector
}

// NewConnectorRegistry creates a registry with the built-in connectors.
// opts apply to every provider HTTP client.
func NewConnectorRegistry(opts rest.Options) *ConnectorRegistry {
	return NewConnectorRegistryWith(confluence.New(opts), jira.New(opts), github.New(opts))
}

// NewConnectorRegistryWith creates a registry from explicit connectors.
func NewConnectorRegistryWith(wiki, issueTracker, codeHost driven.Connector) *ConnectorRegistry {
	return &ConnectorRegistry{
		wiki:         wiki,
		issueTracker: issueTracker,
		codeHost:     codeHost,
	}
}

// Resolve returns the connector for t.
func (r *ConnectorRegistry) Resolve(t domain.SourceType) (driven.Connector, error) {
	var c driven.Connector
	switch t {
	case domain.SourceTypeWiki:
		c = r.wiki
	case domain.SourceTypeIssueTracker:
		c = r.issueTracker
	case domain.SourceTypeCodeHost:
		c = r.codeHost
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSourceType, t)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: no connector registered for %q", domain.ErrUnknownSourceType, t)
	}
	return c, nil
}

// List returns all connector descriptors in source type order.
func (r *ConnectorRegistry) List() []domain.ConnectorType {
	return connectorTypes(r)
}

// Get returns the descriptor for t.
func (r *ConnectorRegistry) Get(t domain.SourceType) (*domain.ConnectorType, error) {
	c, err := r.Resolve(t)
	if err != nil {
		return nil, err
	}
	d := c.Descriptor()
	return &d, nil
}

// connectorTypes lists the descriptors a resolver can serve.
func connectorTypes(resolver driven.ConnectorResolver) []domain.ConnectorType {
	var types []domain.ConnectorType
	for _, t := range domain.SourceTypes() {
		c, err := resolver.Resolve(t)
		if err != nil {
			continue
		}
		types = append(types, c.Descriptor())
	}
	return types
}

// checkCredentials returns domain.ErrCredential naming any missing keys.
func checkCredentials(c driven.Connector, creds domain.CredentialMap) error {
	if c.IsConfigured(creds) {
		return nil
	}
	d := c.Descriptor()
	missing := creds.Missing(d.RequiredCredentialKeys())
	if len(missing) == 0 {
		return fmt.Errorf("%w: %s credentials incomplete", domain.ErrCredential, c.Type())
	}
	return fmt.Errorf("%w: missing %s", domain.ErrCredential, strings.Join(missing, ", "))
}
