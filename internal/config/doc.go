// Package config loads, normalizes, and validates vidash configuration data.
//
// It supplies repository defaults (the sync and write-back timings the
// dashboard protocol expects), expands user paths including tilde shortcuts,
// reads TOML files, and honours the VIDASH_SERVER environment fallback. Always
// obtain settings through this package so downstream code receives sanitized
// URLs, expanded paths and clear validation errors.
package config
