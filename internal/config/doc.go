// Package config loads, normalizes, and validates inkframe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// INKFRAME_API_TOKEN. The Config type centralizes every knob the server and
// CLI need: where the source image lives, how the device is shaped, which
// palette it renders, and how requests are logged.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical names, and clear validation errors.
package config
