package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

const testOwner = "alice"

// mockDataSourceService implements driving.DataSourceService for testing.
type mockDataSourceService struct {
	sources []domain.DataSourceView

	registered *driving.RegisterRequest
	updated    *driving.UpdateRequest
	removed    []string

	registerErr error
	listErr     error
}

func newMockDataSourceService() *mockDataSourceService {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &mockDataSourceService{
		sources: []domain.DataSourceView{
			{
				ID:            "src-1",
				Owner:         testOwner,
				Name:          "eng-wiki",
				DisplayName:   "Engineering Wiki",
				SourceType:    domain.SourceTypeWiki,
				Config:        map[string]string{"spaces": "ENG"},
				IsActive:      true,
				SyncStatus:    domain.SyncStatusCompleted,
				LastSync:      &last,
				DocumentCount: 42,
				CreatedAt:     last,
			},
			{
				ID:          "src-2",
				Owner:       testOwner,
				Name:        "tickets",
				DisplayName: "tickets",
				SourceType:  domain.SourceTypeIssueTracker,
				IsActive:    false,
				SyncStatus:  domain.SyncStatusIdle,
				CreatedAt:   last,
			},
		},
	}
}

func (m *mockDataSourceService) Register(_ context.Context, req driving.RegisterRequest) (*domain.DataSourceView, error) {
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	m.registered = &req
	v := domain.DataSourceView{ID: "new-id", Owner: req.Owner, Name: req.Name, SourceType: req.SourceType}
	m.sources = append(m.sources, v)
	return &v, nil
}

func (m *mockDataSourceService) Get(_ context.Context, id, callerID string) (*domain.DataSourceView, error) {
	for i := range m.sources {
		if m.sources[i].ID == id {
			if m.sources[i].Owner != callerID {
				return nil, domain.ErrForbidden
			}
			return &m.sources[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDataSourceService) List(_ context.Context, callerID string) ([]domain.DataSourceView, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.DataSourceView
	for _, s := range m.sources {
		if s.Owner == callerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockDataSourceService) Update(
	ctx context.Context,
	id, callerID string,
	req driving.UpdateRequest,
) (*domain.DataSourceView, error) {
	v, err := m.Get(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	m.updated = &req
	return v, nil
}

func (m *mockDataSourceService) Remove(_ context.Context, id, _ string) error {
	m.removed = append(m.removed, id)
	return nil
}

func (m *mockDataSourceService) ConnectorTypes() []domain.ConnectorType {
	return []domain.ConnectorType{
		{
			SourceType: domain.SourceTypeWiki,
			Name:       "Confluence",
			CredentialKeys: []domain.ConfigKey{
				{Key: "wiki_url", Label: "Site URL", Required: true},
				{Key: "wiki_api_token", Label: "API Token", Required: true, Secret: true},
			},
		},
		{SourceType: domain.SourceTypeIssueTracker, Name: "Jira"},
		{SourceType: domain.SourceTypeCodeHost, Name: "GitHub"},
	}
}

// mockSyncOrchestrator implements driving.SyncOrchestrator for testing.
type mockSyncOrchestrator struct {
	synced []string
	tested []string

	syncErr    error
	syncAllErr error
	testOK     bool
	testErr    error
}

func (m *mockSyncOrchestrator) Sync(_ context.Context, id, _ string) (*domain.SyncResult, error) {
	m.synced = append(m.synced, id)
	if m.syncErr != nil {
		return &domain.SyncResult{
			DataSourceID: id,
			Status:       domain.SyncStatusFailed,
			Mode:         domain.SyncModeFull,
			Message:      m.syncErr.Error(),
		}, m.syncErr
	}
	return &domain.SyncResult{
		DataSourceID:       id,
		Status:             domain.SyncStatusCompleted,
		Mode:               domain.SyncModeIncremental,
		DocumentsProcessed: 3,
		Message:            "Processed 3 documents",
	}, nil
}

func (m *mockSyncOrchestrator) SyncAll(ctx context.Context, callerID string) ([]domain.SyncResult, error) {
	r, _ := m.Sync(ctx, "src-1", callerID)
	return []domain.SyncResult{*r}, m.syncAllErr
}

func (m *mockSyncOrchestrator) TestConnection(_ context.Context, id, _ string) (bool, error) {
	m.tested = append(m.tested, id)
	return m.testOK, m.testErr
}

func (m *mockSyncOrchestrator) ResetStale(_ context.Context, _ time.Duration) (int, error) {
	return 0, nil
}

// mockScheduler implements driving.Scheduler for testing.
type mockScheduler struct {
	started bool
	err     error
}

func (m *mockScheduler) Start(_ context.Context) error {
	m.started = true
	return m.err
}

func (m *mockScheduler) Stop() error {
	return nil
}

var errBoom = errors.New("boom")

type testServices struct {
	sources *mockDataSourceService
	sync    *mockSyncOrchestrator
	sched   *mockScheduler
}

// setupTestServices installs mocks and resets flag state between runs.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	ts := &testServices{
		sources: newMockDataSourceService(),
		sync:    &mockSyncOrchestrator{testOK: true},
		sched:   &mockScheduler{},
	}
	SetServices(&Services{
		DataSources: ts.sources,
		Sync:        ts.sync,
		Scheduler:   ts.sched,
		Owner:       testOwner,
	})
	resetFlags()
	t.Cleanup(func() {
		SetServices(nil)
		resetFlags()
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	})
	return ts
}

func resetFlags() {
	sourceName, sourceDisplayName = "", ""
	sourceCreds, sourceConfig = nil, nil
	sourceActive, sourceInactive = false, false
	configInitForce = false
	verbose, configPath = false, ""
	for _, fs := range []*pflag.FlagSet{
		sourceAddCmd.Flags(),
		sourceUpdateCmd.Flags(),
		configInitCmd.Flags(),
		rootCmd.PersistentFlags(),
	} {
		fs.VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}
}
