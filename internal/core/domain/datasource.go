package domain

import (
	"fmt"
	"time"
)

// DataSource is a configured connection to one external provider account,
// together with its synchronisation state.
type DataSource struct {
	// ID is the unique identifier (UUID). Immutable.
	ID string

	// Owner is the caller that registered the source. Only the owner may
	// sync, test or modify it.
	Owner string

	// Name is a machine-usable name, unique per owner.
	Name string

	// DisplayName is the human-readable name.
	DisplayName string

	// SourceType selects the connector.
	SourceType SourceType

	// Credentials is the opaque vault blob. Never logged or rendered.
	Credentials []byte `json:"-"`

	// Config holds non-secret connector options (e.g. "projects", "spaces").
	Config map[string]string

	// IsActive is false for soft-disabled sources.
	IsActive bool

	// SyncStatus is the current lifecycle state.
	SyncStatus SyncStatus

	// SyncMessage describes the last outcome ("Processed 12 documents").
	SyncMessage string

	// LastSync is when the last successful sync completed. Nil if never.
	LastSync *time.Time

	// SyncToken is the provider continuation cursor. Empty means none.
	SyncToken string

	// SyncStartedAt is when the current or most recent sync began.
	SyncStartedAt *time.Time

	// DocumentCount is the number of documents handed off by the last
	// successful sync.
	DocumentCount int

	// CreatedAt is when the source was registered.
	CreatedAt time.Time

	// UpdatedAt is when the source was last modified.
	UpdatedAt time.Time
}

// TransitionTo moves the source to the given status if the transition
// table allows it.
func (d *DataSource) TransitionTo(to SyncStatus, at time.Time) error {
	if err := CheckTransition(d.SyncStatus, to); err != nil {
		return fmt.Errorf("data source %s: %w", d.ID, err)
	}
	d.SyncStatus = to
	d.UpdatedAt = at
	if to == SyncStatusSyncing {
		started := at
		d.SyncStartedAt = &started
	}
	return nil
}

// IsSyncing returns true while a sync is in flight.
func (d *DataSource) IsSyncing() bool {
	return d.SyncStatus == SyncStatusSyncing
}

// IsStale returns true if the source has been syncing for longer than threshold.
func (d *DataSource) IsStale(now time.Time, threshold time.Duration) bool {
	if !d.IsSyncing() || d.SyncStartedAt == nil {
		return false
	}
	return now.Sub(*d.SyncStartedAt) > threshold
}

// View returns the credential-free projection of the source.
func (d *DataSource) View() DataSourceView {
	cfg := make(map[string]string, len(d.Config))
	for k, v := range d.Config {
		cfg[k] = v
	}
	return DataSourceView{
		ID:            d.ID,
		Owner:         d.Owner,
		Name:          d.Name,
		DisplayName:   d.DisplayName,
		SourceType:    d.SourceType,
		Config:        cfg,
		IsActive:      d.IsActive,
		SyncStatus:    d.SyncStatus,
		SyncMessage:   d.SyncMessage,
		LastSync:      d.LastSync,
		SyncStartedAt: d.SyncStartedAt,
		DocumentCount: d.DocumentCount,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// DataSourceView is the read model handed to callers. It never carries
// credentials or the raw sync token.
type DataSourceView struct {
	ID            string            `json:"id"`
	Owner         string            `json:"owner"`
	Name          string            `json:"name"`
	DisplayName   string            `json:"display_name"`
	SourceType    SourceType        `json:"source_type"`
	Config        map[string]string `json:"config,omitempty"`
	IsActive      bool              `json:"is_active"`
	SyncStatus    SyncStatus        `json:"sync_status"`
	SyncMessage   string            `json:"sync_message,omitempty"`
	LastSync      *time.Time        `json:"last_sync,omitempty"`
	SyncStartedAt *time.Time        `json:"sync_started_at,omitempty"`
	DocumentCount int               `json:"document_count"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// SyncOutcome is what the orchestrator commits when a sync ends.
type SyncOutcome struct {
	// Status is SyncStatusCompleted or SyncStatusFailed.
	Status SyncStatus

	// Message is stored as the source's SyncMessage.
	Message string

	// StartedAt is the SyncStartedAt of the claim being finished. Zero
	// matches any claim. Becomes LastSync on success.
	StartedAt time.Time

	// FinishedAt is the commit time.
	FinishedAt time.Time

	// SyncToken replaces the stored token on success. Ignored on failure.
	SyncToken string

	// DocumentCount replaces the stored count on success. Ignored on failure.
	DocumentCount int
}

// Apply transitions d according to the outcome. LastSync, SyncToken and
// DocumentCount only change on success.
func (o SyncOutcome) Apply(d *DataSource) error {
	if !o.Status.IsTerminal() {
		return fmt.Errorf("%w: outcome status %s", ErrInvalidTransition, o.Status)
	}
	if !o.OwnsClaim(d) {
		return fmt.Errorf("data source %s: %w", d.ID, ErrClaimLost)
	}
	if err := d.TransitionTo(o.Status, o.FinishedAt); err != nil {
		return err
	}
	d.SyncMessage = o.Message
	if o.Status == SyncStatusCompleted {
		synced := o.LastSync()
		d.LastSync = &synced
		d.SyncToken = o.SyncToken
		d.DocumentCount = o.DocumentCount
	}
	return nil
}

// OwnsClaim reports whether the outcome belongs to d's current claim.
// A source that is not syncing is left to the transition table.
func (o SyncOutcome) OwnsClaim(d *DataSource) bool {
	if o.StartedAt.IsZero() || !d.IsSyncing() || d.SyncStartedAt == nil {
		return true
	}
	return d.SyncStartedAt.Equal(o.StartedAt)
}

// LastSync is the LastSync a successful outcome commits: the claim time,
// or FinishedAt when the outcome carries none.
func (o SyncOutcome) LastSync() time.Time {
	if o.StartedAt.IsZero() {
		return o.FinishedAt
	}
	return o.StartedAt
}
