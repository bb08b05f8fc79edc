// Package datenlord_sdk bootstraps dlfs clients from a configuration string.
//
// Init parses the string (see internal/config for the grammar), merges it with
// DATENLORD_* environment variables and an optional TOML file, and picks a
// backend:
//
//   - http:   a remote filesystem service at endpoint
//   - local:  a directory of the host filesystem at root
//   - sqlite: an embedded database at db_path
//   - mem:    an in-memory namespace, optionally seeded from a JSON file
//
// Mode auto selects the first of http, local and sqlite whose setting is
// present and falls back to mem, so Init(ctx, "example_config") always yields
// a working handle.
package datenlord_sdk
