package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// dataSourceColumns is the column list read by every query.
const dataSourceColumns = `id, owner, name, display_name, source_type, credentials, config, is_active,
	sync_status, sync_message, last_sync, sync_token, sync_started_at, document_count,
	created_at, updated_at`

// dataSourceStore implements driven.DataSourceStore.
type dataSourceStore struct {
	store *Store
}

var _ driven.DataSourceStore = (*dataSourceStore)(nil)

// Load retrieves a data source by ID.
func (s *dataSourceStore) Load(ctx context.Context, id string) (*domain.DataSource, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+dataSourceColumns+` FROM data_sources WHERE id = ?`, id)
	ds, err := scanDataSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning data source: %w", err)
	}
	return ds, nil
}

// Save inserts a data source or updates its registration fields.
// Sync state columns are only written on insert.
func (s *dataSourceStore) Save(ctx context.Context, ds *domain.DataSource) error {
	if ds == nil {
		return domain.ErrInvalidInput
	}
	configJSON, err := json.Marshal(ds.Config)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	now := time.Now().UTC()
	createdAt := ds.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := ds.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	status := ds.SyncStatus
	if status == "" {
		status = domain.SyncStatusIdle
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO data_sources (`+dataSourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			name = excluded.name,
			display_name = excluded.display_name,
			source_type = excluded.source_type,
			credentials = excluded.credentials,
			config = excluded.config,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`, ds.ID, ds.Owner, ds.Name, ds.DisplayName, string(ds.SourceType), ds.Credentials,
		string(configJSON), boolToInt(ds.IsActive),
		string(status), nullString(ds.SyncMessage), formatTimePtr(ds.LastSync),
		nullString(ds.SyncToken), formatTimePtr(ds.SyncStartedAt), ds.DocumentCount,
		formatTime(createdAt), formatTime(updatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("data source %q: %w", ds.Name, domain.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("saving data source: %w", err)
	}
	return nil
}

// Delete removes a data source.
func (s *dataSourceStore) Delete(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM data_sources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting data source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting data source: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns the data sources owned by owner, ordered by name.
func (s *dataSourceStore) List(ctx context.Context, owner string) ([]domain.DataSource, error) {
	return s.query(ctx, `SELECT `+dataSourceColumns+` FROM data_sources WHERE owner = ? ORDER BY name`, owner)
}

// ListAll returns every data source, ordered by owner then name.
func (s *dataSourceStore) ListAll(ctx context.Context) ([]domain.DataSource, error) {
	return s.query(ctx, `SELECT `+dataSourceColumns+` FROM data_sources ORDER BY owner, name`)
}

func (s *dataSourceStore) query(ctx context.Context, query string, args ...any) ([]domain.DataSource, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying data sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.DataSource //nolint:prealloc // size unknown from query
	for rows.Next() {
		ds, err := scanDataSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning data source: %w", err)
		}
		sources = append(sources, *ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating data sources: %w", err)
	}
	return sources, nil
}

// BeginSync claims the source with a conditional UPDATE.
func (s *dataSourceStore) BeginSync(ctx context.Context, id string, startedAt time.Time) (*domain.DataSource, error) {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE data_sources
		SET sync_status = ?, sync_started_at = ?, updated_at = ?
		WHERE id = ? AND sync_status != ?
	`, string(domain.SyncStatusSyncing), formatTime(startedAt), formatTime(startedAt),
		id, string(domain.SyncStatusSyncing))
	if err != nil {
		return nil, fmt.Errorf("claiming data source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claiming data source: %w", err)
	}

	ds, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("data source %s: %w", id, domain.ErrSyncInProgress)
	}
	return ds, nil
}

// FinishSync commits a terminal outcome for a syncing source. The UPDATE
// is conditioned on the claim's start time when the outcome carries one.
func (s *dataSourceStore) FinishSync(ctx context.Context, id string, outcome domain.SyncOutcome) error {
	if !outcome.Status.IsTerminal() {
		return fmt.Errorf("%w: outcome status %s", domain.ErrInvalidTransition, outcome.Status)
	}

	finished := formatTime(outcome.FinishedAt)
	where := ` WHERE id = ? AND sync_status = ?`
	whereArgs := []any{id, string(domain.SyncStatusSyncing)}
	if !outcome.StartedAt.IsZero() {
		where += ` AND sync_started_at = ?`
		whereArgs = append(whereArgs, formatTime(outcome.StartedAt))
	}

	var (
		query string
		args  []any
	)
	if outcome.Status == domain.SyncStatusCompleted {
		query = `UPDATE data_sources
			SET sync_status = ?, sync_message = ?, last_sync = ?, sync_token = ?,
				document_count = ?, updated_at = ?`
		args = []any{string(outcome.Status), nullString(outcome.Message), formatTime(outcome.LastSync()),
			nullString(outcome.SyncToken), outcome.DocumentCount, finished}
	} else {
		query = `UPDATE data_sources
			SET sync_status = ?, sync_message = ?, updated_at = ?`
		args = []any{string(outcome.Status), nullString(outcome.Message), finished}
	}

	res, err := s.store.db.ExecContext(ctx, query+where, append(args, whereArgs...)...)
	if err != nil {
		return fmt.Errorf("finishing sync: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing sync: %w", err)
	}
	if n > 0 {
		return nil
	}

	ds, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	if !outcome.OwnsClaim(ds) {
		return fmt.Errorf("data source %s: %w", id, domain.ErrClaimLost)
	}
	return fmt.Errorf("data source %s: %w: %s -> %s", id, domain.ErrInvalidTransition, ds.SyncStatus, outcome.Status)
}

// ResetStale fails syncing sources that started before cutoff.
func (s *dataSourceStore) ResetStale(ctx context.Context, cutoff time.Time, message string) (int, error) {
	now := formatTime(time.Now())
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE data_sources
		SET sync_status = ?, sync_message = ?, updated_at = ?
		WHERE sync_status = ? AND sync_started_at IS NOT NULL AND sync_started_at < ?
	`, string(domain.SyncStatusFailed), message, now, string(domain.SyncStatusSyncing), formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("resetting stale syncs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("resetting stale syncs: %w", err)
	}
	return int(n), nil
}

// scanDataSource scans one data source row.
func scanDataSource(row rowScanner) (*domain.DataSource, error) {
	var ds domain.DataSource
	var sourceType, configJSON, status, createdAt, updatedAt string
	var message, lastSync, token, startedAt sql.NullString
	var active int

	if err := row.Scan(&ds.ID, &ds.Owner, &ds.Name, &ds.DisplayName, &sourceType, &ds.Credentials,
		&configJSON, &active, &status, &message, &lastSync, &token, &startedAt, &ds.DocumentCount,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(configJSON), &ds.Config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if ds.Config == nil {
		ds.Config = map[string]string{}
	}

	ds.SourceType = domain.SourceType(sourceType)
	ds.IsActive = active == 1
	ds.SyncStatus = domain.SyncStatus(status)
	ds.SyncMessage = message.String
	ds.SyncToken = token.String
	ds.LastSync = parseTimePtr(lastSync)
	ds.SyncStartedAt = parseTimePtr(startedAt)

	var err error
	if ds.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if ds.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &ds, nil
}
