// Package sqlite provides the SQLite-backed data source and scheduler stores.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements two store interfaces
// through a single database connection:
//
//   - DataSourceStore: Data source registrations and sync state
//   - SchedulerStore: Scheduled task state and execution history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Sync Claims
//
// BeginSync is a single conditional UPDATE, so two processes sharing the
// database file cannot both move a source to syncing.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-ingest/data/ingest.db
package sqlite
