package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/connectors/rest"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func TestConnectorRegistry_Resolve(t *testing.T) {
	registry := NewConnectorRegistry(rest.Options{})

	for _, st := range domain.SourceTypes() {
		t.Run(string(st), func(t *testing.T) {
			c, err := registry.Resolve(st)
			require.NoError(t, err)
			assert.Equal(t, st, c.Type())
			assert.Equal(t, st, c.Descriptor().SourceType)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := registry.Resolve("gitlab")
		assert.ErrorIs(t, err, domain.ErrUnknownSourceType)
	})

	t.Run("unregistered", func(t *testing.T) {
		partial := NewConnectorRegistryWith(newMockConnector(domain.SourceTypeWiki), nil, nil)
		_, err := partial.Resolve(domain.SourceTypeCodeHost)
		assert.ErrorIs(t, err, domain.ErrUnknownSourceType)
	})
}

func TestConnectorRegistry_List(t *testing.T) {
	registry := NewConnectorRegistry(rest.Options{})

	types := registry.List()
	require.Len(t, types, 3)
	names := []string{types[0].Name, types[1].Name, types[2].Name}
	assert.Equal(t, []string{"Confluence", "Jira", "GitHub"}, names)

	for _, ct := range types {
		assert.NotEmpty(t, ct.RequiredCredentialKeys(), ct.Name)
	}
}

func TestConnectorRegistry_Get(t *testing.T) {
	registry := NewConnectorRegistry(rest.Options{})

	ct, err := registry.Get(domain.SourceTypeIssueTracker)
	require.NoError(t, err)
	assert.Equal(t, "Jira", ct.Name)

	_, err = registry.Get("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownSourceType)
}

func TestCheckCredentials(t *testing.T) {
	c := newMockConnector(domain.SourceTypeWiki, "url", "token")

	assert.NoError(t, checkCredentials(c, domain.CredentialMap{"url": "u", "token": "t"}))

	err := checkCredentials(c, domain.CredentialMap{"url": "u"})
	require.ErrorIs(t, err, domain.ErrCredential)
	assert.Contains(t, err.Error(), "missing token")
}
