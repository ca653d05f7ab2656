package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

func newTestDataSourceService(t *testing.T) (*DataSourceService, *mockDataSourceStore, *mockVault, *mockConsumer) {
	t.Helper()
	store := newMockDataSourceStore()
	vault := &mockVault{}
	consumer := newMockConsumer()
	resolver := mockResolver{
		domain.SourceTypeIssueTracker: newMockConnector(domain.SourceTypeIssueTracker, "jira_url", "jira_api_token"),
		domain.SourceTypeWiki:         newMockConnector(domain.SourceTypeWiki, "confluence_url"),
	}
	svc := NewDataSourceService(store, vault, resolver, consumer)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return svc, store, vault, consumer
}

func validRegister() driving.RegisterRequest {
	return driving.RegisterRequest{
		Owner:      "alice",
		Name:       "team-jira",
		SourceType: domain.SourceTypeIssueTracker,
		Credentials: domain.CredentialMap{
			"jira_url":       "https://example.atlassian.net",
			"jira_api_token": "tok",
		},
		Config: map[string]string{" projects ": " proj "},
	}
}

func TestDataSourceService_Register(t *testing.T) {
	t.Run("stores an idle encrypted source", func(t *testing.T) {
		svc, store, vault, _ := newTestDataSourceService(t)

		view, err := svc.Register(context.Background(), validRegister())
		require.NoError(t, err)

		assert.Equal(t, "id-1", view.ID)
		assert.Equal(t, "team-jira", view.DisplayName, "display name defaults to name")
		assert.Equal(t, domain.SyncStatusIdle, view.SyncStatus)
		assert.True(t, view.IsActive)
		assert.Nil(t, view.LastSync)
		assert.Equal(t, map[string]string{"projects": "proj"}, view.Config)

		stored := store.get("id-1")
		creds, err := vault.Decrypt(stored.Credentials)
		require.NoError(t, err)
		assert.Equal(t, "tok", creds["jira_api_token"])
	})

	t.Run("same name for another owner", func(t *testing.T) {
		svc, _, _, _ := newTestDataSourceService(t)
		_, err := svc.Register(context.Background(), validRegister())
		require.NoError(t, err)

		req := validRegister()
		req.Owner = "bob"
		_, err = svc.Register(context.Background(), req)
		assert.NoError(t, err)
	})

	tests := []struct {
		name    string
		mutate  func(*driving.RegisterRequest)
		wantErr error
	}{
		{"empty owner", func(r *driving.RegisterRequest) { r.Owner = " " }, domain.ErrInvalidInput},
		{"bad name", func(r *driving.RegisterRequest) { r.Name = "Team Jira" }, domain.ErrInvalidInput},
		{"empty name", func(r *driving.RegisterRequest) { r.Name = "" }, domain.ErrInvalidInput},
		{"unknown type", func(r *driving.RegisterRequest) { r.SourceType = "gitlab" }, domain.ErrUnknownSourceType},
		{"type without connector", func(r *driving.RegisterRequest) { r.SourceType = domain.SourceTypeCodeHost }, domain.ErrUnknownSourceType},
		{"missing credential", func(r *driving.RegisterRequest) { delete(r.Credentials, "jira_api_token") }, domain.ErrCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _, _ := newTestDataSourceService(t)
			req := validRegister()
			tt.mutate(&req)

			_, err := svc.Register(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
			all, _ := store.ListAll(context.Background())
			assert.Empty(t, all)
		})
	}

	t.Run("duplicate name", func(t *testing.T) {
		svc, _, _, _ := newTestDataSourceService(t)
		_, err := svc.Register(context.Background(), validRegister())
		require.NoError(t, err)

		_, err = svc.Register(context.Background(), validRegister())
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("vault failure", func(t *testing.T) {
		svc, _, vault, _ := newTestDataSourceService(t)
		vault.encryptErr = domain.ErrCredential
		_, err := svc.Register(context.Background(), validRegister())
		assert.ErrorIs(t, err, domain.ErrCredential)
	})
}

func TestDataSourceService_GetAndList(t *testing.T) {
	svc, _, _, _ := newTestDataSourceService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, validRegister())
	require.NoError(t, err)
	req := validRegister()
	req.Name = "another"
	_, err = svc.Register(ctx, req)
	require.NoError(t, err)

	got, err := svc.Get(ctx, first.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "team-jira", got.Name)

	_, err = svc.Get(ctx, first.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Get(ctx, "missing", "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	views, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "another", views[0].Name)

	views, err = svc.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestDataSourceService_Update(t *testing.T) {
	setup := func(t *testing.T) (*DataSourceService, *mockDataSourceStore, *mockVault, string) {
		svc, store, vault, _ := newTestDataSourceService(t)
		view, err := svc.Register(context.Background(), validRegister())
		require.NoError(t, err)
		return svc, store, vault, view.ID
	}

	t.Run("fields and merged credentials", func(t *testing.T) {
		svc, store, vault, id := setup(t)
		name := "Team Jira"
		active := false

		view, err := svc.Update(context.Background(), id, "alice", driving.UpdateRequest{
			DisplayName: &name,
			IsActive:    &active,
			Credentials: domain.CredentialMap{"jira_api_token": "rotated"},
			Config:      map[string]string{"max_pages": "5"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Team Jira", view.DisplayName)
		assert.False(t, view.IsActive)
		assert.Equal(t, map[string]string{"max_pages": "5"}, view.Config)

		creds, err := vault.Decrypt(store.get(id).Credentials)
		require.NoError(t, err)
		assert.Equal(t, "rotated", creds["jira_api_token"])
		assert.Equal(t, "https://example.atlassian.net", creds["jira_url"])
	})

	t.Run("empty credential value keeps the stored one", func(t *testing.T) {
		svc, store, vault, id := setup(t)

		_, err := svc.Update(context.Background(), id, "alice", driving.UpdateRequest{
			Credentials: domain.CredentialMap{"jira_api_token": ""},
		})
		require.NoError(t, err)
		creds, err := vault.Decrypt(store.get(id).Credentials)
		require.NoError(t, err)
		assert.Equal(t, "tok", creds["jira_api_token"])
	})

	t.Run("undecryptable stored credentials", func(t *testing.T) {
		svc, store, _, id := setup(t)
		ds := store.get(id)
		ds.Credentials = []byte("garbage")
		require.NoError(t, store.Save(context.Background(), &ds))

		_, err := svc.Update(context.Background(), id, "alice", driving.UpdateRequest{
			Credentials: domain.CredentialMap{"jira_api_token": "rotated"},
		})
		assert.ErrorIs(t, err, domain.ErrCredential)
		assert.Equal(t, []byte("garbage"), store.get(id).Credentials)
	})

	t.Run("blank display name", func(t *testing.T) {
		svc, _, _, id := setup(t)
		blank := "  "
		_, err := svc.Update(context.Background(), id, "alice", driving.UpdateRequest{DisplayName: &blank})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("other owner", func(t *testing.T) {
		svc, _, _, id := setup(t)
		_, err := svc.Update(context.Background(), id, "bob", driving.UpdateRequest{})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("while syncing", func(t *testing.T) {
		svc, store, _, id := setup(t)
		_, err := store.BeginSync(context.Background(), id, time.Now())
		require.NoError(t, err)

		_, err = svc.Update(context.Background(), id, "alice", driving.UpdateRequest{})
		assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	})
}

func TestDataSourceService_Remove(t *testing.T) {
	t.Run("deletes and forgets", func(t *testing.T) {
		svc, store, _, consumer := newTestDataSourceService(t)
		view, err := svc.Register(context.Background(), validRegister())
		require.NoError(t, err)

		require.NoError(t, svc.Remove(context.Background(), view.ID, "alice"))

		_, err = store.Load(context.Background(), view.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, []string{view.ID}, consumer.forgotten)
	})

	t.Run("other owner", func(t *testing.T) {
		svc, store, _, _ := newTestDataSourceService(t)
		view, err := svc.Register(context.Background(), validRegister())
		require.NoError(t, err)

		assert.ErrorIs(t, svc.Remove(context.Background(), view.ID, "bob"), domain.ErrForbidden)
		_, err = store.Load(context.Background(), view.ID)
		assert.NoError(t, err)
	})

	t.Run("while syncing", func(t *testing.T) {
		svc, store, _, _ := newTestDataSourceService(t)
		view, err := svc.Register(context.Background(), validRegister())
		require.NoError(t, err)
		_, err = store.BeginSync(context.Background(), view.ID, time.Now())
		require.NoError(t, err)

		assert.ErrorIs(t, svc.Remove(context.Background(), view.ID, "alice"), domain.ErrSyncInProgress)
	})

	t.Run("forget failure", func(t *testing.T) {
		svc, _, _, consumer := newTestDataSourceService(t)
		consumer.forgetErr = errBoom
		view, err := svc.Register(context.Background(), validRegister())
		require.NoError(t, err)

		assert.ErrorIs(t, svc.Remove(context.Background(), view.ID, "alice"), errBoom)
	})

	t.Run("without forgetter", func(t *testing.T) {
		store := newMockDataSourceStore()
		resolver := mockResolver{domain.SourceTypeIssueTracker: newMockConnector(domain.SourceTypeIssueTracker)}
		svc := NewDataSourceService(store, &mockVault{}, resolver, nil)
		view, err := svc.Register(context.Background(), validRegister())
		require.NoError(t, err)

		assert.NoError(t, svc.Remove(context.Background(), view.ID, "alice"))
	})
}

func TestDataSourceService_ConnectorTypes(t *testing.T) {
	svc, _, _, _ := newTestDataSourceService(t)

	types := svc.ConnectorTypes()
	require.Len(t, types, 2)
	assert.Equal(t, domain.SourceTypeWiki, types[0].SourceType)
	assert.Equal(t, domain.SourceTypeIssueTracker, types[1].SourceType)
}
