// Package config loads, normalizes, and validates checkflac configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts) and
// reads TOML files from ~/.config/checkflac/config.toml or ./checkflac.toml.
// Command-line flags are applied on top by the CLI.
package config
