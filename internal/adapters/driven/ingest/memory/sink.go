// Package memory provides an in-memory ingestion consumer for tests and
// dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure Sink implements the interfaces.
var (
	_ driven.IngestionConsumer = (*Sink)(nil)
	_ driven.Forgetter         = (*Sink)(nil)
)

// Sink keeps the latest version of every ingested document, keyed by data
// source and external ID.
type Sink struct {
	mu        sync.RWMutex
	documents map[string]map[string]domain.Document
	batches   map[string]int
}

// NewSink creates an empty in-memory sink.
func NewSink() *Sink {
	return &Sink{
		documents: make(map[string]map[string]domain.Document),
		batches:   make(map[string]int),
	}
}

// Ingest stores or replaces the documents of one sync.
func (s *Sink) Ingest(ctx context.Context, dataSourceID string, docs []domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.documents[dataSourceID]
	if !ok {
		byID = make(map[string]domain.Document, len(docs))
		s.documents[dataSourceID] = byID
	}
	for _, doc := range docs {
		byID[doc.ExternalID] = doc
	}
	s.batches[dataSourceID]++
	return nil
}

// Forget drops everything ingested for a data source.
func (s *Sink) Forget(_ context.Context, dataSourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, dataSourceID)
	delete(s.batches, dataSourceID)
	return nil
}

// Documents returns the stored documents of a data source ordered by
// external ID.
func (s *Sink) Documents(dataSourceID string) []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := s.documents[dataSourceID]
	docs := make([]domain.Document, 0, len(byID))
	for _, doc := range byID {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ExternalID < docs[j].ExternalID })
	return docs
}

// Batches returns how many times Ingest was called for a data source.
func (s *Sink) Batches(dataSourceID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batches[dataSourceID]
}
