package github

import (
	"errors"
	"fmt"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/sercha-ingest/internal/connectors/rest"
)

// wrapError converts go-github errors to the shared REST error types so
// status codes survive into connector errors.
func wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Errorf("%s: %w", operation, &rest.RateLimitError{
			RetryAfter: time.Until(rateLimitErr.Rate.Reset.Time),
			URL:        requestURL(rateLimitErr.Response),
		})
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%s: %w", operation, &rest.RateLimitError{
			RetryAfter: abuseErr.GetRetryAfter(),
			URL:        requestURL(abuseErr.Response),
		})
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return fmt.Errorf("%s: %w", operation, &rest.APIError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
			URL:        requestURL(ghErr.Response),
		})
	}

	return fmt.Errorf("%s: %w", operation, err)
}
