package transport

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultContentType is sent with a body when the caller set no Content-Type.
const DefaultContentType = "text/plain;charset=UTF-8"

// Request is everything the dispatcher needs for one transfer.
type Request struct {
	Method string
	URL    *url.URL
	// Header keys are sent exactly as written.
	Header   http.Header
	Body     []byte
	User     string
	Password string
}

// Prepare resolves the request URL and checks scheme and method before any
// I/O happens. The returned URL always has a scheme.
func Prepare(method string, u *url.URL) (*url.URL, error) {
	if u == nil {
		return nil, fmt.Errorf("%w: missing URL", ErrProtocolNotSupported)
	}
	resolved := *u
	switch strings.ToLower(resolved.Scheme) {
	case "http", "https":
		resolved.Scheme = strings.ToLower(resolved.Scheme)
	case "file":
		resolved.Scheme = "file"
		if method != http.MethodGet {
			return nil, fmt.Errorf("%w: %s", ErrMethodNotSupported, method)
		}
	case "":
		resolved.Scheme = "http"
		if resolved.Host == "" {
			resolved.Host = "localhost"
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrProtocolNotSupported, resolved.Scheme)
	}
	return &resolved, nil
}

// DefaultPort returns 443 for https and 80 otherwise.
func DefaultPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Port()
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}

// BasicAuth builds the Authorization header value for user and password.
func BasicAuth(user, password string) string {
	creds := user + ":" + password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

// HasHeader reports whether h carries name, compared case-insensitively.
func HasHeader(h http.Header, name string) bool {
	for k := range h {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func carriesBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}

// outgoingHeader copies the caller's headers and adds auth, content type and
// content length for the given method and payload.
func outgoingHeader(req *Request, method string, payload []byte) (http.Header, int64) {
	h := make(http.Header, len(req.Header)+3)
	for k, v := range req.Header {
		h[k] = append([]string(nil), v...)
	}

	if req.User != "" {
		deleteHeader(h, "Authorization")
		h.Set("Authorization", BasicAuth(req.User, req.Password))
	}

	var contentLength int64
	if carriesBody(method) && len(payload) > 0 {
		contentLength = int64(len(payload))
		if !HasHeader(h, "Content-Type") {
			h.Set("Content-Type", DefaultContentType)
		}
	}
	return h, contentLength
}

func deleteHeader(h http.Header, name string) {
	for k := range h {
		if strings.EqualFold(k, name) {
			delete(h, k)
		}
	}
}

func headerValue(h http.Header, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}
