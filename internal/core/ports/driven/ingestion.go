package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// IngestionConsumer receives the documents produced by a sync.
// The orchestrator calls Ingest exactly once per successful fetch.
type IngestionConsumer interface {
	Ingest(ctx context.Context, dataSourceID string, docs []domain.Document) error
}

// Forgetter is implemented by consumers that can drop everything ingested
// for a data source. Called when the source is removed.
type Forgetter interface {
	Forget(ctx context.Context, dataSourceID string) error
}
