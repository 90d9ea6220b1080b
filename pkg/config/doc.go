// Package config loads the application configuration from an optional YAML
// file overlaid with BLUELINE_* environment variables.
package config
