package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure DataSourceStore implements the interface.
var _ driven.DataSourceStore = (*DataSourceStore)(nil)

// DataSourceStore is an in-memory implementation of driven.DataSourceStore.
// Sync claims are serialised by the store mutex.
type DataSourceStore struct {
	mu      sync.RWMutex
	sources map[string]domain.DataSource
	now     func() time.Time
}

// NewDataSourceStore creates a new in-memory data source store.
func NewDataSourceStore() *DataSourceStore {
	return &DataSourceStore{
		sources: make(map[string]domain.DataSource),
		now:     time.Now,
	}
}

// Load retrieves a data source by ID.
func (s *DataSourceStore) Load(_ context.Context, id string) (*domain.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.sources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := clone(ds)
	return &out, nil
}

// Save inserts a data source or updates its registration fields.
func (s *DataSourceStore) Save(_ context.Context, ds *domain.DataSource) error {
	if ds == nil {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, other := range s.sources {
		if id != ds.ID && other.Owner == ds.Owner && other.Name == ds.Name {
			return fmt.Errorf("data source %q: %w", ds.Name, domain.ErrAlreadyExists)
		}
	}

	saved := clone(*ds)
	if saved.SyncStatus == "" {
		saved.SyncStatus = domain.SyncStatusIdle
	}
	if existing, ok := s.sources[ds.ID]; ok {
		saved.CreatedAt = existing.CreatedAt
		saved.SyncStatus = existing.SyncStatus
		saved.SyncMessage = existing.SyncMessage
		saved.LastSync = existing.LastSync
		saved.SyncToken = existing.SyncToken
		saved.SyncStartedAt = existing.SyncStartedAt
		saved.DocumentCount = existing.DocumentCount
	}
	s.sources[ds.ID] = saved
	return nil
}

// Delete removes a data source.
func (s *DataSourceStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sources, id)
	return nil
}

// List returns the data sources owned by owner, ordered by name.
func (s *DataSourceStore) List(_ context.Context, owner string) ([]domain.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.DataSource, 0)
	for _, ds := range s.sources {
		if ds.Owner == owner {
			result = append(result, clone(ds))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ListAll returns every data source, ordered by owner then name.
func (s *DataSourceStore) ListAll(_ context.Context) ([]domain.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.DataSource, 0, len(s.sources))
	for _, ds := range s.sources {
		result = append(result, clone(ds))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Owner != result[j].Owner {
			return result[i].Owner < result[j].Owner
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// BeginSync moves the source to syncing unless it already is.
func (s *DataSourceStore) BeginSync(_ context.Context, id string, startedAt time.Time) (*domain.DataSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.sources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if ds.IsSyncing() {
		return nil, fmt.Errorf("data source %s: %w", id, domain.ErrSyncInProgress)
	}
	if err := ds.TransitionTo(domain.SyncStatusSyncing, startedAt); err != nil {
		return nil, err
	}
	s.sources[id] = ds
	out := clone(ds)
	return &out, nil
}

// FinishSync commits a terminal outcome for a syncing source.
func (s *DataSourceStore) FinishSync(_ context.Context, id string, outcome domain.SyncOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.sources[id]
	if !ok {
		return domain.ErrNotFound
	}
	if err := outcome.Apply(&ds); err != nil {
		return err
	}
	s.sources[id] = ds
	return nil
}

// ResetStale fails syncing sources that started before cutoff.
func (s *DataSourceStore) ResetStale(_ context.Context, cutoff time.Time, message string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, ds := range s.sources {
		if !ds.IsSyncing() || ds.SyncStartedAt == nil || !ds.SyncStartedAt.Before(cutoff) {
			continue
		}
		outcome := domain.SyncOutcome{Status: domain.SyncStatusFailed, Message: message, FinishedAt: now}
		if err := outcome.Apply(&ds); err != nil {
			return n, err
		}
		s.sources[id] = ds
		n++
	}
	return n, nil
}

// clone deep-copies the mutable parts of a data source.
func clone(ds domain.DataSource) domain.DataSource {
	if ds.Config != nil {
		cfg := make(map[string]string, len(ds.Config))
		for k, v := range ds.Config {
			cfg[k] = v
		}
		ds.Config = cfg
	}
	if ds.Credentials != nil {
		ds.Credentials = append([]byte(nil), ds.Credentials...)
	}
	if ds.LastSync != nil {
		t := *ds.LastSync
		ds.LastSync = &t
	}
	if ds.SyncStartedAt != nil {
		t := *ds.SyncStartedAt
		ds.SyncStartedAt = &t
	}
	return ds
}
