// Package rest is the HTTP plumbing shared by the wiki and issue-tracker
// connectors.
//
// It provides:
//
//   - Client: JSON GET requests against a provider base URL with Basic
//     authentication, a bounded timeout and proactive rate limiting
//   - RateLimiter: token bucket throttling plus Retry-After handling
//   - APIError: non-2xx responses with helpers such as IsUnauthorized
//   - StripHTML: storage-format and page HTML reduced to plain text
//   - EncodeCursor / DecodeCursor: opaque versioned continuation tokens
//
// The code-host connector talks to its provider through go-github instead,
// but reuses the rate limiter and error helpers.
package rest
