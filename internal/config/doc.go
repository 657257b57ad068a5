// Package config loads, normalizes, and validates pressline configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment overrides for secrets such as
// PRESSLINE_TOKEN_SECRET and PRESSLINE_MONGO_URI. The Config type collects
// every knob the daemon and CLI need so storage, queue, and auth settings are
// discovered in one pass.
package config
