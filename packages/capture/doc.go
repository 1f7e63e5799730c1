// Package capture extracts values from a finished request.
//
// A capture expression names where the value comes from:
//   - body or body:<path>, a gjson path into a JSON body
//   - header:<name>, a response header
//   - status, the HTTP status code
//   - url, the final response URL after redirects
//
// Expressions may be prefixed with a name, as in id=body:data.id.
package capture
