// Package file loads sercha-ingest configuration from a TOML file.
//
// Values come from three layers, later ones winning:
//
//   - Built-in defaults (Default)
//   - ~/.sercha-ingest/config.toml, or the file named by --config
//   - SERCHA_INGEST_* environment variables
//
// The vault secret is usually supplied through SERCHA_INGEST_SECRET so it
// never lands in the file.
package file
