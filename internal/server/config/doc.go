// Package config defines the wsmesh-server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking of secrets for logging
//   - convert.go: mapping onto the component configurations
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// WSMESH_ environment variables and command-line overrides.
package config
