// Package output renders fetches for the terminal or as JSON.
//
// Watch attaches a Formatter to a request so every event is reported as it
// fires. NewReport collects the final state of the request once it is DONE.
//
// Supported output formats:
//   - console: coloured event trace and response summary
//   - json: one document per run, written by Flush
package output
