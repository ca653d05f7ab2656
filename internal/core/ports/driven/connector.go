package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// Connector fetches documents from one kind of external provider.
// Each source type (wiki, issue-tracker, code-host) has exactly one
// implementation.
//
// Connectors are stateless: credentials and config are passed on every
// call, so a single instance is safe for concurrent use across sources.
type Connector interface {
	// Type returns the source type this connector serves.
	Type() domain.SourceType

	// Descriptor describes the connector's credential and config keys.
	Descriptor() domain.ConnectorType

	// IsConfigured reports whether every required credential key is present.
	// Pure check, no network I/O.
	IsConfigured(creds domain.CredentialMap) bool

	// TestConnection performs one lightweight authenticated request.
	// Returns false when not configured (without I/O), on auth failure,
	// timeout, or unreachable host. Never errors.
	TestConnection(ctx context.Context, creds domain.CredentialMap) bool

	// FetchAll retrieves every accessible document.
	// Per-item failures are recorded in FetchResult.Skipped. A failure after
	// the first page returns what was gathered so far plus a skip entry.
	// A failure on the first request returns a *domain.ConnectorError.
	FetchAll(ctx context.Context, creds domain.CredentialMap, cfg map[string]string) (*domain.FetchResult, error)

	// FetchSince retrieves documents updated at or after since.
	// When cursor is non-empty the provider continuation takes precedence.
	FetchSince(
		ctx context.Context,
		creds domain.CredentialMap,
		cfg map[string]string,
		since time.Time,
		cursor string,
	) (*domain.FetchResult, error)
}

// ConnectorResolver maps a source type to its connector.
type ConnectorResolver interface {
	// Resolve returns the connector for t or domain.ErrUnknownSourceType.
	Resolve(t domain.SourceType) (Connector, error)
}
