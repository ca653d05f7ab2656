// Package github implements the code-host connector for GitHub
// organisations.
//
// The connector lists the repositories of one organisation and indexes a
// small set of documentation files from each repository's default branch.
//
// # Authentication
//
// A token is always required. When a username is also supplied the token
// is sent with HTTP Basic authentication; otherwise it is sent as an
// OAuth2 bearer token. Both personal access tokens and OAuth App tokens
// work. GitHub Enterprise Server is supported through the github_api_url key.
//
// # Configuration
//
//   - paths: comma-separated path groups probed in every repository.
//     Alternatives within a group are separated by "|" and the first one
//     present wins. Default: README.md|README.rst|README.txt|README,
//     CONTRIBUTING.md, ARCHITECTURE.md, API.md, docs/README.md|docs/index.md
//
//   - workers: number of repositories probed concurrently. Default: 4.
//
// # Rate Limiting
//
// The connector implements a dual-strategy rate limiting approach:
//
//  1. Proactive throttling: a token bucket limits requests to
//     approximately 1.2 requests per second, staying under the
//     5,000/hour limit.
//
//  2. Reactive handling: the connector monitors X-RateLimit-Remaining and
//     X-RateLimit-Reset headers. When the quota is nearly exhausted it
//     waits until the reset time before continuing.
//
// # Sync Operations
//
// A full sync probes every active repository. An incremental sync probes
// only repositories pushed or updated since the last sync. Repository
// listings are small so no continuation cursor is produced.
//
// Archived and disabled repositories are never indexed.
package github
