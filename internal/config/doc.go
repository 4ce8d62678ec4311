// Package config loads and validates the YAML service configuration,
// including the empirical filter and de-duplication thresholds.
package config
