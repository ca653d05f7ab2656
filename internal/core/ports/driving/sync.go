package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// SyncOrchestrator coordinates document synchronisation from data sources.
type SyncOrchestrator interface {
	// Sync runs one full or incremental sync of a data source owned by callerID.
	// On failure the returned result has status failed and the error says why.
	Sync(ctx context.Context, id, callerID string) (*domain.SyncResult, error)

	// SyncAll syncs every active data source owned by callerID.
	// An empty callerID syncs every owner's sources.
	SyncAll(ctx context.Context, callerID string) ([]domain.SyncResult, error)

	// TestConnection checks a data source's credentials against its provider.
	// Never changes sync state.
	TestConnection(ctx context.Context, id, callerID string) (bool, error)

	// ResetStale fails syncs that have been in flight longer than threshold.
	ResetStale(ctx context.Context, threshold time.Duration) (int, error)
}
