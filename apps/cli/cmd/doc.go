// Package cmd implements the xmlhttp CLI commands using Cobra.
//
// Available commands:
//   - fetch: Send one request through the XMLHttpRequest emulation
//   - init: Write a default configuration file
//   - version: Show xmlhttp version information
//   - completion: Generate shell completion scripts
//
// fetch prints every lifecycle event as it fires, then the response.
// Captures, assertions and a JSON schema can be checked against the
// finished request, and --repeat turns a fetch into a paced load run.
package cmd
