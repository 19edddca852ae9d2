// Package config loads, normalizes, and validates upliftd's TOML
// configuration.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and the API bind address
//   - Sampler: endpoint and timeout for the external posterior sampler
//   - Model: default sampling parameters applied when a run spec omits them
//   - Logging: log format and level
//
// Load resolves the config file (explicit path, then
// ~/.config/uplift/config.toml, then ./uplift.toml), applies defaults for
// anything unset, expands home-relative paths, and validates the result.
package config
