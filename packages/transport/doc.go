// Package transport carries a request to its destination and streams the
// response back.
//
// It selects between two transports from the request URL:
//   - http and https, through net/http, with TLS material, basic auth,
//     302/303/307 redirect handling and content decoding
//   - file, read through an afero filesystem (GET only)
//
// A URL without a scheme is sent to localhost over http.
package transport
