// Package config loads and validates casefile configuration from TOML.
//
// Configuration resolves from ~/.config/casefile/config.toml by default;
// a missing file falls back to repository defaults so the engine is usable
// with zero setup. The [linking] section carries the known-entity catalog
// and deterministic rule table consumed by the entity linker, and [gate]
// carries the confidence thresholds the auto-confirmer applies.
package config
