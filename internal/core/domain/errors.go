package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden indicates the caller does not own the data source.
	ErrForbidden = errors.New("forbidden")

	// ErrSyncInProgress indicates a sync is already running for the data source.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrCredential indicates credentials could not be decrypted or are incomplete.
	ErrCredential = errors.New("credential error")

	// ErrUnknownSourceType indicates a source type outside the supported set.
	ErrUnknownSourceType = errors.New("unknown source type")

	// ErrInactive indicates the data source has been soft-disabled.
	ErrInactive = errors.New("data source is inactive")

	// ErrInvalidTransition indicates a sync status change outside the transition table.
	ErrInvalidTransition = errors.New("invalid sync status transition")

	// ErrClaimLost indicates a sync was reset as stale and the source has
	// since been claimed by another sync.
	ErrClaimLost = errors.New("sync claim lost")

	// ErrConnector is the sentinel matched by every ConnectorError.
	ErrConnector = errors.New("connector error")
)

// ConnectorError wraps a provider-side failure: network, authentication,
// or a malformed response.
type ConnectorError struct {
	// Source is the source type of the failing connector.
	Source SourceType

	// Op is the operation that failed (e.g. "list spaces").
	Op string

	// StatusCode is the HTTP status returned by the provider, 0 if none.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

func (e *ConnectorError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Source))
	sb.WriteString(": ")
	sb.WriteString(e.Op)
	if e.IsAuth() {
		sb.WriteString(": authentication failed")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *ConnectorError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrConnector.
func (e *ConnectorError) Is(target error) bool {
	return target == ErrConnector
}

// IsAuth returns true if the provider rejected the credentials.
func (e *ConnectorError) IsAuth() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// NewConnectorError builds a ConnectorError.
func NewConnectorError(source SourceType, op string, statusCode int, err error) *ConnectorError {
	return &ConnectorError{Source: source, Op: op, StatusCode: statusCode, Err: err}
}
