package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// ErrInvalidCursor indicates a continuation token could not be decoded.
var ErrInvalidCursor = errors.New("invalid cursor format")

// APIError represents a non-2xx provider response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// RateLimitError represents a 429 that outlasted the retry budget.
type RateLimitError struct {
	RetryAfter time.Duration
	URL        string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s (URL: %s)", e.RetryAfter, e.URL)
}

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	return statusCode(err) == 404
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	return statusCode(err) == 401
}

// IsForbidden checks if the error indicates a forbidden resource.
func IsForbidden(err error) bool {
	return statusCode(err) == 403
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}

// IsTimeout checks if the error is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	return statusCode(err)
}

func statusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return 429
	}
	return 0
}

// ConnectorError wraps err as a domain.ConnectorError for source and op,
// carrying the HTTP status when there is one.
func ConnectorError(source domain.SourceType, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *domain.ConnectorError
	if errors.As(err, &ce) {
		return err
	}
	return domain.NewConnectorError(source, op, statusCode(err), err)
}
