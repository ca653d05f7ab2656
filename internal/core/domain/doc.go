// Package domain defines the core business entities for sercha-ingest.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - DataSource: A configured connection to one external provider
//   - SyncStatus: The closed sync lifecycle enum and its transition table
//   - Document: A normalised unit of content produced by a connector
//   - FetchResult: A connector's output including skipped items
//   - SyncResult: The outcome of one sync reported to callers
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
