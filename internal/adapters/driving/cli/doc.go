// Package cli provides the cobra command tree for sercha-ingest.
//
// Commands talk to the core through the driving ports only. Services are
// installed with SetServices, or built lazily by the bootstrap function
// registered with SetBootstrap once flags have been parsed.
package cli
