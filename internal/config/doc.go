// Package config loads, normalizes, and validates lr2ise configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads .env files, and honours environment
// fallbacks such as LR_API_TOKEN and ISE_PASSWORD. The Config type centralizes
// the search window, polling cadence, and both backend connections so a run can
// be described in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized URLs, canonical log formats, and clear validation errors.
package config
