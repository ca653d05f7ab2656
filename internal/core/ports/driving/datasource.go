package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// RegisterRequest describes a new data source.
type RegisterRequest struct {
	Owner       string
	Name        string
	DisplayName string
	SourceType  domain.SourceType
	Credentials domain.CredentialMap
	Config      map[string]string
}

// UpdateRequest describes changes to a data source. Nil fields are left alone.
type UpdateRequest struct {
	DisplayName *string
	IsActive    *bool
	// Credentials are merged into the existing ones.
	Credentials domain.CredentialMap
	// Config replaces the existing config when non-nil.
	Config map[string]string
}

// DataSourceService manages data source registrations.
type DataSourceService interface {
	// Register validates, encrypts and stores a new data source in idle state.
	Register(ctx context.Context, req RegisterRequest) (*domain.DataSourceView, error)

	// Get returns a data source owned by callerID.
	Get(ctx context.Context, id, callerID string) (*domain.DataSourceView, error)

	// List returns the data sources owned by callerID.
	List(ctx context.Context, callerID string) ([]domain.DataSourceView, error)

	// Update modifies a data source owned by callerID.
	Update(ctx context.Context, id, callerID string, req UpdateRequest) (*domain.DataSourceView, error)

	// Remove deletes a data source owned by callerID and forgets its documents.
	Remove(ctx context.Context, id, callerID string) error

	// ConnectorTypes lists the supported connectors.
	ConnectorTypes() []domain.ConnectorType
}
