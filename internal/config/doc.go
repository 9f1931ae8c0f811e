// Package config loads, validates, and normalizes the TOML configuration for
// the coding engine.
//
// Configuration resolves from an explicit path when provided, otherwise from
// ~/.config/autocoder/config.toml, falling back to built-in defaults when no
// file exists. Paths are tilde-expanded and made absolute during load so the
// rest of the codebase never deals with relative or unexpanded paths.
package config
