// Package jsonl provides an ingestion consumer that appends documents to one
// JSON Lines file per data source.
//
// Each line is a Record. A downstream indexer tails or batch-reads the
// files; removing a data source deletes its file.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// fileExt is the extension of every per-source file.
const fileExt = ".jsonl"

// Ensure Sink implements the interfaces.
var (
	_ driven.IngestionConsumer = (*Sink)(nil)
	_ driven.Forgetter         = (*Sink)(nil)
)

// Record is one line of a data source file.
type Record struct {
	DataSourceID string          `json:"data_source_id"`
	IngestedAt   time.Time       `json:"ingested_at"`
	Document     domain.Document `json:"document"`
}

// Sink writes documents under dir.
type Sink struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// NewSink creates a sink rooted at dir, creating it if needed.
func NewSink(dir string) (*Sink, error) {
	if dir == "" {
		return nil, errors.New("jsonl: directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating ingest directory: %w", err)
	}
	return &Sink{dir: dir, now: time.Now}, nil
}

// Dir returns the directory the sink writes to.
func (s *Sink) Dir() string {
	return s.dir
}

// Path returns the file for a data source.
func (s *Sink) Path(dataSourceID string) (string, error) {
	if dataSourceID == "" || strings.ContainsAny(dataSourceID, `/\`) || strings.Contains(dataSourceID, "..") {
		return "", fmt.Errorf("%w: data source id %q", domain.ErrInvalidInput, dataSourceID)
	}
	return filepath.Join(s.dir, dataSourceID+fileExt), nil
}

// Ingest appends one record per document and syncs the file.
func (s *Sink) Ingest(ctx context.Context, dataSourceID string, docs []domain.Document) error {
	path, err := s.Path(dataSourceID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	at := s.now().UTC()
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, doc := range docs {
		if err := enc.Encode(Record{DataSourceID: dataSourceID, IngestedAt: at, Document: doc}); err != nil {
			f.Close()
			return fmt.Errorf("encoding document %s: %w", doc.ExternalID, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	return f.Close()
}

// Forget deletes the data source file. A missing file is not an error.
func (s *Sink) Forget(_ context.Context, dataSourceID string) error {
	path, err := s.Path(dataSourceID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// ReadAll decodes every record of a data source file.
func (s *Sink) ReadAll(dataSourceID string) ([]Record, error) {
	path, err := s.Path(dataSourceID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	dec := json.NewDecoder(f)
	for dec.More() {
		var r Record
		if err := dec.Decode(&r); err != nil {
			return records, fmt.Errorf("decoding %s: %w", path, err)
		}
		records = append(records, r)
	}
	return records, nil
}
