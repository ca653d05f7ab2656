package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// namePattern is a lower-case slug usable in CLI arguments and file names.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Ensure DataSourceService implements the interface.
var _ driving.DataSourceService = (*DataSourceService)(nil)

// DataSourceService manages data source registrations.
type DataSourceService struct {
	store     driven.DataSourceStore
	vault     driven.Vault
	resolver  driven.ConnectorResolver
	forgetter driven.Forgetter
	now       func() time.Time
	newID     func() string
}

// NewDataSourceService creates a data source service. forgetter may be nil.
func NewDataSourceService(
	store driven.DataSourceStore,
	vault driven.Vault,
	resolver driven.ConnectorResolver,
	forgetter driven.Forgetter,
) *DataSourceService {
	return &DataSourceService{
		store:     store,
		vault:     vault,
		resolver:  resolver,
		forgetter: forgetter,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Register validates, encrypts and stores a new data source in idle state.
func (s *DataSourceService) Register(
	ctx context.Context, req driving.RegisterRequest,
) (*domain.DataSourceView, error) {
	if strings.TrimSpace(req.Owner) == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	if !namePattern.MatchString(req.Name) {
		return nil, fmt.Errorf("%w: name %q must be a lower-case slug", domain.ErrInvalidInput, req.Name)
	}
	if !req.SourceType.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSourceType, req.SourceType)
	}

	connector, err := s.resolver.Resolve(req.SourceType)
	if err != nil {
		return nil, err
	}
	if err := checkCredentials(connector, req.Credentials); err != nil {
		return nil, err
	}

	existing, err := s.store.List(ctx, req.Owner)
	if err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	for _, ds := range existing {
		if ds.Name == req.Name {
			return nil, fmt.Errorf("data source %q: %w", req.Name, domain.ErrAlreadyExists)
		}
	}

	blob, err := s.vault.Encrypt(req.Credentials)
	if err != nil {
		return nil, fmt.Errorf("encrypt credentials: %w", err)
	}

	now := s.now()
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = req.Name
	}
	ds := &domain.DataSource{
		ID:          s.newID(),
		Owner:       req.Owner,
		Name:        req.Name,
		DisplayName: displayName,
		SourceType:  req.SourceType,
		Credentials: blob,
		Config:      copyConfig(req.Config),
		IsActive:    true,
		SyncStatus:  domain.SyncStatusIdle,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Save(ctx, ds); err != nil {
		return nil, fmt.Errorf("save data source: %w", err)
	}

	logger.Info("registered %s data source %s (%s)", ds.SourceType, ds.Name, ds.ID)
	view := ds.View()
	return &view, nil
}

// Get returns a data source owned by callerID.
func (s *DataSourceService) Get(ctx context.Context, id, callerID string) (*domain.DataSourceView, error) {
	ds, err := loadOwned(ctx, s.store, id, callerID)
	if err != nil {
		return nil, err
	}
	view := ds.View()
	return &view, nil
}

// List returns the data sources owned by callerID, ordered by name.
func (s *DataSourceService) List(ctx context.Context, callerID string) ([]domain.DataSourceView, error) {
	sources, err := s.store.List(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	views := make([]domain.DataSourceView, len(sources))
	for i := range sources {
		views[i] = sources[i].View()
	}
	return views, nil
}

// Update modifies a data source owned by callerID. Sources that are
// syncing cannot be modified.
func (s *DataSourceService) Update(
	ctx context.Context, id, callerID string, req driving.UpdateRequest,
) (*domain.DataSourceView, error) {
	ds, err := loadOwned(ctx, s.store, id, callerID)
	if err != nil {
		return nil, err
	}
	if ds.IsSyncing() {
		return nil, fmt.Errorf("data source %s: %w", id, domain.ErrSyncInProgress)
	}

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return nil, fmt.Errorf("%w: display name cannot be empty", domain.ErrInvalidInput)
		}
		ds.DisplayName = name
	}
	if req.IsActive != nil {
		ds.IsActive = *req.IsActive
	}
	if req.Config != nil {
		ds.Config = copyConfig(req.Config)
	}
	if len(req.Credentials) > 0 {
		if err := s.mergeCredentials(ds, req.Credentials); err != nil {
			return nil, err
		}
	}
	ds.UpdatedAt = s.now()

	if err := s.store.Save(ctx, ds); err != nil {
		return nil, fmt.Errorf("save data source: %w", err)
	}
	view := ds.View()
	return &view, nil
}

// mergeCredentials applies updates to the stored blob and checks the
// result is still complete.
func (s *DataSourceService) mergeCredentials(ds *domain.DataSource, updates domain.CredentialMap) error {
	connector, err := s.resolver.Resolve(ds.SourceType)
	if err != nil {
		return err
	}
	blob, err := s.vault.Merge(ds.Credentials, updates)
	if err != nil {
		return fmt.Errorf("merge credentials: %w", err)
	}
	merged, err := s.vault.Decrypt(blob)
	if err != nil {
		return fmt.Errorf("decrypt credentials: %w", err)
	}
	if err := checkCredentials(connector, merged); err != nil {
		return err
	}
	ds.Credentials = blob
	return nil
}

// Remove deletes a data source owned by callerID and asks the ingestion
// side to forget its documents.
func (s *DataSourceService) Remove(ctx context.Context, id, callerID string) error {
	ds, err := loadOwned(ctx, s.store, id, callerID)
	if err != nil {
		return err
	}
	if ds.IsSyncing() {
		return fmt.Errorf("data source %s: %w", id, domain.ErrSyncInProgress)
	}
	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete data source: %w", err)
	}
	if s.forgetter != nil {
		if err := s.forgetter.Forget(ctx, id); err != nil {
			return fmt.Errorf("forget documents: %w", err)
		}
	}
	logger.Info("removed data source %s (%s)", ds.Name, id)
	return nil
}

// ConnectorTypes lists the supported connectors.
func (s *DataSourceService) ConnectorTypes() []domain.ConnectorType {
	return connectorTypes(s.resolver)
}

func copyConfig(cfg map[string]string) map[string]string {
	out := make(map[string]string, len(cfg))
	for k, v := range cfg {
		if k = strings.TrimSpace(k); k != "" {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}
