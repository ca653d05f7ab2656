package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// DataSourceStore persists data sources and their sync state.
type DataSourceStore interface {
	// Load retrieves a data source by ID.
	// Returns domain.ErrNotFound if it does not exist.
	Load(ctx context.Context, id string) (*domain.DataSource, error)

	// Save creates a data source or replaces its registration fields.
	// The sync state of an existing source is only changed by BeginSync,
	// FinishSync and ResetStale. Returns domain.ErrAlreadyExists when
	// another source of the same owner has the same name.
	Save(ctx context.Context, ds *domain.DataSource) error

	// Delete removes a data source. Deleting a missing source returns
	// domain.ErrNotFound.
	Delete(ctx context.Context, id string) error

	// List returns the data sources owned by owner, ordered by name.
	List(ctx context.Context, owner string) ([]domain.DataSource, error)

	// ListAll returns every data source regardless of owner.
	ListAll(ctx context.Context) ([]domain.DataSource, error)

	// BeginSync atomically moves the source to syncing if it is not already
	// syncing and records startedAt. Returns domain.ErrSyncInProgress when
	// another sync holds it and domain.ErrNotFound when it does not exist.
	// The returned source reflects the state after the transition.
	BeginSync(ctx context.Context, id string, startedAt time.Time) (*domain.DataSource, error)

	// FinishSync commits a terminal outcome for a syncing source.
	// Returns domain.ErrInvalidTransition if the source is not syncing and
	// domain.ErrClaimLost if it is syncing under a different claim than
	// outcome.StartedAt.
	FinishSync(ctx context.Context, id string, outcome domain.SyncOutcome) error

	// ResetStale fails every syncing source whose sync started before
	// cutoff, using message as the sync message. Returns the number reset.
	ResetStale(ctx context.Context, cutoff time.Time, message string) (int, error)
}
