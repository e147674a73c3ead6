// Package config loads, validates, and defaults ludex configuration.
//
// Configuration is TOML. Load resolves the file path (explicit flag, then
// ~/.config/ludex/config.toml, then ./ludex.toml), expands ~ in every path
// field, applies defaults for anything unset, and rejects unusable values
// before the daemon or CLI proceeds. The embedded sample_config.toml is the
// canonical reference for available keys.
package config
