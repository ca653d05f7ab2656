// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Connector: Fetches documents from one kind of provider
//   - ConnectorResolver: Maps a source type to its connector
//   - DataSourceStore: Data source and sync state persistence
//   - Vault: Credential encryption at rest
//   - IngestionConsumer: Receives fetched documents
//   - SchedulerStore: Scheduled task state and run history
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Forgetter: Drops ingested documents when a source is removed
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
