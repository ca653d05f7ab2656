// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services never import adapters. Connectors reach them through the
// ConnectorResolver port and persistence through the driven stores.
package services
