package domain

import "fmt"

// SyncStatus is the lifecycle state of a DataSource's synchronisation.
type SyncStatus string

const (
	// SyncStatusIdle is the initial state of a newly registered source.
	SyncStatusIdle SyncStatus = "idle"

	// SyncStatusSyncing means a sync is in flight. At most one per source.
	SyncStatusSyncing SyncStatus = "syncing"

	// SyncStatusCompleted means the last sync finished successfully.
	SyncStatusCompleted SyncStatus = "completed"

	// SyncStatusFailed means the last sync failed or was abandoned.
	SyncStatusFailed SyncStatus = "failed"
)

// transitions is the allowed-edge table. Anything absent is rejected.
var transitions = map[SyncStatus][]SyncStatus{
	SyncStatusIdle:      {SyncStatusSyncing},
	SyncStatusSyncing:   {SyncStatusCompleted, SyncStatusFailed},
	SyncStatusCompleted: {SyncStatusSyncing},
	SyncStatusFailed:    {SyncStatusSyncing},
}

// SyncStatuses returns every status value.
func SyncStatuses() []SyncStatus {
	return []SyncStatus{SyncStatusIdle, SyncStatusSyncing, SyncStatusCompleted, SyncStatusFailed}
}

// Valid returns true if s is a known status.
func (s SyncStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal returns true for the outcomes of a finished sync.
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusCompleted || s == SyncStatusFailed
}

// CanTransition reports whether the status may move from one state to another.
func CanTransition(from, to SyncStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition when from -> to is not allowed.
func CheckTransition(from, to SyncStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
