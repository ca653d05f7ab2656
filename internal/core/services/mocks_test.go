package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// --- Mock implementations shared by the service tests ---

// mockDataSourceStore implements driven.DataSourceStore in memory.
type mockDataSourceStore struct {
	mu        sync.Mutex
	sources   map[string]domain.DataSource
	listErr   error
	saveErr   error
	finishErr error
	finished  []domain.SyncOutcome
}

func newMockDataSourceStore(sources ...domain.DataSource) *mockDataSourceStore {
	m := &mockDataSourceStore{sources: make(map[string]domain.DataSource)}
	for _, ds := range sources {
		m.sources[ds.ID] = ds
	}
	return m
}

func (m *mockDataSourceStore) Load(_ context.Context, id string) (*domain.DataSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.sources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ds, nil
}

func (m *mockDataSourceStore) Save(_ context.Context, ds *domain.DataSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, other := range m.sources {
		if other.ID != ds.ID && other.Owner == ds.Owner && other.Name == ds.Name {
			return domain.ErrAlreadyExists
		}
	}
	saved := *ds
	if existing, ok := m.sources[ds.ID]; ok {
		saved.SyncStatus = existing.SyncStatus
		saved.SyncMessage = existing.SyncMessage
		saved.SyncStartedAt = existing.SyncStartedAt
		saved.SyncToken = existing.SyncToken
		saved.LastSync = existing.LastSync
		saved.DocumentCount = existing.DocumentCount
	}
	m.sources[ds.ID] = saved
	return nil
}

func (m *mockDataSourceStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.sources, id)
	return nil
}

func (m *mockDataSourceStore) List(_ context.Context, owner string) ([]domain.DataSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.DataSource
	for _, ds := range m.sources {
		if ds.Owner == owner {
			out = append(out, ds)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockDataSourceStore) ListAll(_ context.Context) ([]domain.DataSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.DataSource, 0, len(m.sources))
	for _, ds := range m.sources {
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockDataSourceStore) BeginSync(_ context.Context, id string, startedAt time.Time) (*domain.DataSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.sources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if ds.IsSyncing() {
		return nil, domain.ErrSyncInProgress
	}
	if err := ds.TransitionTo(domain.SyncStatusSyncing, startedAt); err != nil {
		return nil, err
	}
	m.sources[id] = ds
	return &ds, nil
}

func (m *mockDataSourceStore) FinishSync(_ context.Context, id string, outcome domain.SyncOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finishErr != nil {
		return m.finishErr
	}
	ds, ok := m.sources[id]
	if !ok {
		return domain.ErrNotFound
	}
	if err := outcome.Apply(&ds); err != nil {
		return err
	}
	m.sources[id] = ds
	m.finished = append(m.finished, outcome)
	return nil
}

func (m *mockDataSourceStore) ResetStale(_ context.Context, cutoff time.Time, message string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, ds := range m.sources {
		if !ds.IsSyncing() || ds.SyncStartedAt == nil || !ds.SyncStartedAt.Before(cutoff) {
			continue
		}
		outcome := domain.SyncOutcome{Status: domain.SyncStatusFailed, Message: message, FinishedAt: cutoff}
		if err := outcome.Apply(&ds); err != nil {
			return n, err
		}
		m.sources[id] = ds
		n++
	}
	return n, nil
}

func (m *mockDataSourceStore) get(id string) domain.DataSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sources[id]
}

// mockVault stores credentials as plain JSON with a marker prefix.
type mockVault struct {
	encryptErr error
}

const mockVaultPrefix = "sealed:"

func (m *mockVault) Encrypt(creds domain.CredentialMap) ([]byte, error) {
	if m.encryptErr != nil {
		return nil, m.encryptErr
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCredential, err)
	}
	return append([]byte(mockVaultPrefix), data...), nil
}

func (m *mockVault) Decrypt(blob []byte) (domain.CredentialMap, error) {
	if len(blob) < len(mockVaultPrefix) || string(blob[:len(mockVaultPrefix)]) != mockVaultPrefix {
		return nil, fmt.Errorf("%w: not sealed", domain.ErrCredential)
	}
	creds := domain.CredentialMap{}
	if err := json.Unmarshal(blob[len(mockVaultPrefix):], &creds); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCredential, err)
	}
	return creds, nil
}

func (m *mockVault) Merge(blob []byte, updates domain.CredentialMap) ([]byte, error) {
	creds, err := m.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	return m.Encrypt(creds.Merge(updates))
}

func (m *mockVault) seal(creds domain.CredentialMap) []byte {
	blob, _ := m.Encrypt(creds)
	return blob
}

// mockConnector implements driven.Connector with canned results.
type mockConnector struct {
	sourceType domain.SourceType
	required   []string

	mu          sync.Mutex
	result      *domain.FetchResult
	err         error
	connected   bool
	fetchAll    int
	fetchSince  int
	lastSince   time.Time
	lastCursor  string
	started     chan struct{}
	release     chan struct{}
	testedCreds domain.CredentialMap
}

func newMockConnector(t domain.SourceType, required ...string) *mockConnector {
	return &mockConnector{sourceType: t, required: required, connected: true, result: &domain.FetchResult{}}
}

func (m *mockConnector) Type() domain.SourceType { return m.sourceType }

func (m *mockConnector) Descriptor() domain.ConnectorType {
	keys := make([]domain.ConfigKey, len(m.required))
	for i, k := range m.required {
		keys[i] = domain.ConfigKey{Key: k, Required: true}
	}
	return domain.ConnectorType{SourceType: m.sourceType, Name: string(m.sourceType), CredentialKeys: keys}
}

func (m *mockConnector) IsConfigured(creds domain.CredentialMap) bool {
	return creds.HasAll(m.required)
}

func (m *mockConnector) TestConnection(_ context.Context, creds domain.CredentialMap) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.testedCreds = creds
	return m.connected
}

func (m *mockConnector) FetchAll(ctx context.Context, _ domain.CredentialMap, _ map[string]string) (*domain.FetchResult, error) {
	m.mu.Lock()
	m.fetchAll++
	m.mu.Unlock()
	return m.respond(ctx)
}

func (m *mockConnector) FetchSince(
	ctx context.Context, _ domain.CredentialMap, _ map[string]string, since time.Time, cursor string,
) (*domain.FetchResult, error) {
	m.mu.Lock()
	m.fetchSince++
	m.lastSince = since
	m.lastCursor = cursor
	m.mu.Unlock()
	return m.respond(ctx)
}

func (m *mockConnector) respond(ctx context.Context) (*domain.FetchResult, error) {
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	result := *m.result
	return &result, nil
}

func (m *mockConnector) counts() (all, since int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchAll, m.fetchSince
}

// mockResolver resolves source types to mock connectors.
type mockResolver map[domain.SourceType]driven.Connector

func (m mockResolver) Resolve(t domain.SourceType) (driven.Connector, error) {
	c, ok := m[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSourceType, t)
	}
	return c, nil
}

// mockConsumer records ingested batches and forgotten sources.
type mockConsumer struct {
	mu        sync.Mutex
	batches   map[string][][]domain.Document
	forgotten []string
	ingestErr error
	forgetErr error
}

func newMockConsumer() *mockConsumer {
	return &mockConsumer{batches: make(map[string][][]domain.Document)}
}

func (m *mockConsumer) Ingest(_ context.Context, id string, docs []domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ingestErr != nil {
		return m.ingestErr
	}
	m.batches[id] = append(m.batches[id], docs)
	return nil
}

func (m *mockConsumer) Forget(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forgetErr != nil {
		return m.forgetErr
	}
	m.forgotten = append(m.forgotten, id)
	return nil
}

func (m *mockConsumer) calls(id string) [][]domain.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches[id]
}

var errBoom = errors.New("boom")

// Ensure mocks implement interfaces
var (
	_ driven.DataSourceStore   = (*mockDataSourceStore)(nil)
	_ driven.Vault             = (*mockVault)(nil)
	_ driven.Connector         = (*mockConnector)(nil)
	_ driven.ConnectorResolver = mockResolver(nil)
	_ driven.IngestionConsumer = (*mockConsumer)(nil)
	_ driven.Forgetter         = (*mockConsumer)(nil)
)
