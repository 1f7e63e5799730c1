// Package config handles configuration loading and management for xmlhttp.
//
// It provides functionality for:
//   - Loading configuration from .xmlhttp.json or .xmlhttp.yaml files
//   - Default configuration values
//   - Environment variable overrides
//   - Converting a configuration into request options
package config
