package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func TestSink_IngestAndForget(t *testing.T) {
	sink := NewSink()
	ctx := context.Background()

	require.NoError(t, sink.Ingest(ctx, "src-1", []domain.Document{
		{ExternalID: "PROJ-2", Title: "second"},
		{ExternalID: "PROJ-1", Title: "first"},
	}))
	require.NoError(t, sink.Ingest(ctx, "src-1", []domain.Document{
		{ExternalID: "PROJ-1", Title: "first, edited"},
	}))
	require.NoError(t, sink.Ingest(ctx, "src-2", nil))

	docs := sink.Documents("src-1")
	require.Len(t, docs, 2)
	assert.Equal(t, "first, edited", docs[0].Title)
	assert.Equal(t, "PROJ-2", docs[1].ExternalID)
	assert.Equal(t, 2, sink.Batches("src-1"))
	assert.Equal(t, 1, sink.Batches("src-2"))
	assert.Empty(t, sink.Documents("src-2"))

	require.NoError(t, sink.Forget(ctx, "src-1"))
	assert.Empty(t, sink.Documents("src-1"))
	assert.Zero(t, sink.Batches("src-1"))
}

func TestSink_Cancelled(t *testing.T) {
	sink := NewSink()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sink.Ingest(ctx, "src-1", []domain.Document{{ExternalID: "x"}}), context.Canceled)
	assert.Empty(t, sink.Documents("src-1"))
}
