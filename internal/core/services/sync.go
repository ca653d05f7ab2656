package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
	"github.com/custodia-labs/sercha-ingest/internal/metrics"
)

const (
	// DefaultSyncConcurrency bounds SyncAll's parallel syncs.
	DefaultSyncConcurrency = 4

	// finishTimeout bounds the terminal state write after the sync context
	// is gone.
	finishTimeout = 10 * time.Second

	// staleMessage is the sync message of an abandoned sync.
	staleMessage = "sync abandoned"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// SyncOrchestrator drives one data source through a sync: ownership and
// configuration checks, the syncing claim, the connector fetch, ingestion
// and the terminal state commit.
type SyncOrchestrator struct {
	store       driven.DataSourceStore
	vault       driven.Vault
	resolver    driven.ConnectorResolver
	consumer    driven.IngestionConsumer
	concurrency int
	now         func() time.Time
}

// NewSyncOrchestrator creates a new sync orchestrator.
func NewSyncOrchestrator(
	store driven.DataSourceStore,
	vault driven.Vault,
	resolver driven.ConnectorResolver,
	consumer driven.IngestionConsumer,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		store:       store,
		vault:       vault,
		resolver:    resolver,
		consumer:    consumer,
		concurrency: DefaultSyncConcurrency,
		now:         time.Now,
	}
}

// SetConcurrency sets how many sources SyncAll syncs at once.
func (o *SyncOrchestrator) SetConcurrency(n int) {
	if n > 0 {
		o.concurrency = n
	}
}

// Sync runs one sync of a data source owned by callerID.
// Configuration problems are reported before any state change. Once the
// source is claimed, every exit commits completed or failed.
func (o *SyncOrchestrator) Sync(ctx context.Context, id, callerID string) (*domain.SyncResult, error) {
	ds, err := loadOwned(ctx, o.store, id, callerID)
	if err != nil {
		metrics.RecordRejected(rejectReason(err))
		return nil, err
	}
	if !ds.IsActive {
		metrics.RecordRejected(rejectReason(domain.ErrInactive))
		return nil, fmt.Errorf("data source %s: %w", id, domain.ErrInactive)
	}

	connector, creds, err := o.prepare(ds)
	if err != nil {
		metrics.RecordRejected(rejectReason(err))
		return nil, err
	}

	start := o.now()
	ds, err = o.store.BeginSync(ctx, id, start)
	if err != nil {
		metrics.RecordRejected(rejectReason(err))
		return nil, fmt.Errorf("begin sync: %w", err)
	}
	defer metrics.SyncStarted()()

	mode := domain.SyncModeFull
	if ds.LastSync != nil {
		mode = domain.SyncModeIncremental
	}
	logger.Info("sync %s (%s): starting %s sync", ds.Name, ds.SourceType, mode)

	var fetched *domain.FetchResult
	if mode == domain.SyncModeFull {
		fetched, err = connector.FetchAll(ctx, creds, ds.Config)
	} else {
		fetched, err = connector.FetchSince(ctx, creds, ds.Config, *ds.LastSync, ds.SyncToken)
	}
	if err != nil {
		return o.fail(ctx, ds, mode, start, 0, fmt.Errorf("fetch: %w", err))
	}

	if err := o.consumer.Ingest(ctx, ds.ID, fetched.Documents); err != nil {
		return o.fail(ctx, ds, mode, start, len(fetched.Skipped), fmt.Errorf("ingest: %w", err))
	}

	processed := len(fetched.Documents)
	skipped := len(fetched.Skipped)
	message := fmt.Sprintf("Processed %d documents", processed)
	if skipped > 0 {
		message += fmt.Sprintf(", skipped %d", skipped)
	}
	for _, s := range fetched.Skipped {
		logger.Debug("sync %s: skipped %s: %s", ds.Name, s.ExternalID, s.Reason)
	}

	finished := o.now()
	outcome := domain.SyncOutcome{
		Status:        domain.SyncStatusCompleted,
		Message:       message,
		StartedAt:     start,
		FinishedAt:    finished,
		SyncToken:     fetched.NextCursor,
		DocumentCount: processed,
	}
	if err := o.commit(ctx, ds.ID, outcome); err != nil {
		// Documents were handed off; the source stays syncing until
		// stale reset picks it up.
		logger.Error("sync %s: commit completed state: %v", ds.Name, err)
		return &domain.SyncResult{
			DataSourceID:       ds.ID,
			Status:             domain.SyncStatusFailed,
			Mode:               mode,
			DocumentsProcessed: processed,
			DocumentsSkipped:   skipped,
			LastSync:           ds.LastSync,
			Message:            err.Error(),
			Duration:           finished.Sub(start),
		}, fmt.Errorf("commit sync: %w", err)
	}

	metrics.RecordSync(string(ds.SourceType), string(mode), string(domain.SyncStatusCompleted),
		finished.Sub(start), processed, skipped)
	logger.Info("sync %s: %s in %s", ds.Name, message, finished.Sub(start).Round(time.Millisecond))

	return &domain.SyncResult{
		DataSourceID:       ds.ID,
		Status:             domain.SyncStatusCompleted,
		Mode:               mode,
		DocumentsProcessed: processed,
		DocumentsSkipped:   skipped,
		LastSync:           &start,
		Message:            message,
		Duration:           finished.Sub(start),
	}, nil
}

// fail commits the failed state and builds the failed result.
func (o *SyncOrchestrator) fail(
	ctx context.Context, ds *domain.DataSource, mode domain.SyncMode, start time.Time, skipped int, cause error,
) (*domain.SyncResult, error) {
	finished := o.now()
	outcome := domain.SyncOutcome{
		Status:     domain.SyncStatusFailed,
		Message:    cause.Error(),
		StartedAt:  start,
		FinishedAt: finished,
	}
	if err := o.commit(ctx, ds.ID, outcome); err != nil {
		logger.Error("sync %s: commit failed state: %v", ds.Name, err)
		cause = errors.Join(cause, fmt.Errorf("commit sync: %w", err))
	}

	metrics.RecordSync(string(ds.SourceType), string(mode), string(domain.SyncStatusFailed),
		finished.Sub(start), 0, skipped)
	logger.Warn("sync %s: failed: %v", ds.Name, cause)

	return &domain.SyncResult{
		DataSourceID:     ds.ID,
		Status:           domain.SyncStatusFailed,
		Mode:             mode,
		DocumentsSkipped: skipped,
		LastSync:         ds.LastSync,
		Message:          outcome.Message,
		Duration:         finished.Sub(start),
	}, cause
}

// commit writes the terminal state on a context detached from the
// caller's cancellation so a cancelled sync never stays syncing.
func (o *SyncOrchestrator) commit(ctx context.Context, id string, outcome domain.SyncOutcome) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	return o.store.FinishSync(ctx, id, outcome)
}

// SyncAll syncs every active source of callerID, or of every owner when
// callerID is empty. Sources already syncing are skipped.
func (o *SyncOrchestrator) SyncAll(ctx context.Context, callerID string) ([]domain.SyncResult, error) {
	var (
		sources []domain.DataSource
		err     error
	)
	if callerID == "" {
		sources, err = o.store.ListAll(ctx)
	} else {
		sources, err = o.store.List(ctx, callerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}

	var (
		mu      sync.Mutex
		results []domain.SyncResult
		errs    []error
	)
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for _, ds := range sources {
		if !ds.IsActive {
			continue
		}
		g.Go(func() error {
			result, err := o.Sync(ctx, ds.ID, ds.Owner)
			mu.Lock()
			defer mu.Unlock()
			if result != nil {
				results = append(results, *result)
			}
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrSyncInProgress):
				logger.Debug("sync %s: already in progress, skipping", ds.Name)
			default:
				errs = append(errs, fmt.Errorf("%s: %w", ds.Name, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// TestConnection checks a source's stored credentials against its provider.
func (o *SyncOrchestrator) TestConnection(ctx context.Context, id, callerID string) (bool, error) {
	ds, err := loadOwned(ctx, o.store, id, callerID)
	if err != nil {
		return false, err
	}
	connector, err := o.resolver.Resolve(ds.SourceType)
	if err != nil {
		return false, err
	}
	creds, err := o.vault.Decrypt(ds.Credentials)
	if err != nil {
		return false, fmt.Errorf("decrypt credentials: %w", err)
	}
	if !connector.IsConfigured(creds) {
		return false, nil
	}
	return connector.TestConnection(ctx, creds), nil
}

// ResetStale fails syncs that started more than threshold ago.
func (o *SyncOrchestrator) ResetStale(ctx context.Context, threshold time.Duration) (int, error) {
	n, err := o.store.ResetStale(ctx, o.now().Add(-threshold), staleMessage)
	if err != nil {
		return 0, fmt.Errorf("reset stale syncs: %w", err)
	}
	if n > 0 {
		metrics.RecordStaleResets(n)
		logger.Warn("reset %d abandoned syncs older than %s", n, threshold)
	}
	return n, nil
}

// prepare resolves the connector and decrypts usable credentials.
func (o *SyncOrchestrator) prepare(ds *domain.DataSource) (driven.Connector, domain.CredentialMap, error) {
	connector, err := o.resolver.Resolve(ds.SourceType)
	if err != nil {
		return nil, nil, err
	}
	creds, err := o.vault.Decrypt(ds.Credentials)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypt credentials: %w", err)
	}
	if err := checkCredentials(connector, creds); err != nil {
		return nil, nil, err
	}
	return connector, creds, nil
}

// loadOwned loads a source and checks callerID owns it.
func loadOwned(ctx context.Context, store driven.DataSourceStore, id, callerID string) (*domain.DataSource, error) {
	ds, err := store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load data source %s: %w", id, err)
	}
	if ds.Owner != callerID {
		return nil, fmt.Errorf("data source %s: %w", id, domain.ErrForbidden)
	}
	return ds, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		return "in_progress"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrInactive):
		return "inactive"
	case errors.Is(err, domain.ErrCredential):
		return "credential"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "other"
	}
}
