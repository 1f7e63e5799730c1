// Package policy decides which request methods and headers a caller may set.
//
// It covers two checks:
//   - Forbidden methods (TRACE, TRACK, CONNECT)
//   - Transport-reserved request headers, which the transport sets itself
package policy
