// Package body turns the bytes of a finished transfer into the value a
// caller asked for with a response type.
//
// Supported response types:
//   - "" and "text": UTF-8 text
//   - "json": a parsed JSON value (map[string]any, []any, float64, string, bool or nil)
//   - "document": an HTML/XML document parsed with goquery
//   - "arraybuffer": a []byte whose length and capacity equal the payload size
//   - "blob": the same bytes wrapped in a *Blob
//
// Bytes arrive either as chunks through an Accumulator (asynchronous
// transfers) or as one complete buffer (local files and synchronous sends).
package body
