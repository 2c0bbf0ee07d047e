// Package config loads, normalizes, and validates the TOML configuration
// shared by the clipper CLI and daemon.
//
// Load resolves the config path (explicit flag, then the user config dir,
// then a project-local clipper.toml), decodes on top of Default(), expands
// and absolutizes every path field, and rejects invalid values before any
// other subsystem starts. CreateSample writes the embedded annotated sample
// for `clipper config init`.
package config
