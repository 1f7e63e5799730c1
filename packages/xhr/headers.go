package xhr

import (
	"net/http"
	"strings"

	"github.com/abdul-hamid-achik/xmlhttp/packages/transport"
)

// setHeader replaces any header equal to name ignoring case and stores
// value under name exactly as written.
func setHeader(h http.Header, name, value string) {
	for k := range h {
		if strings.EqualFold(k, name) {
			delete(h, k)
		}
	}
	h[name] = []string{value}
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// SetRequestHeader sets a request header, replacing any earlier value of
// the same name. A forbidden header is refused with a warning and false.
func (r *Request) SetRequestHeader(name, value string) (bool, error) {
	if r.state != Opened {
		return false, stateError("setRequestHeader", "request must be opened before setting headers")
	}
	if !r.checker.AllowHeader(name) {
		r.logger.WithField("header", name).Warnf("Refused to set unsafe header %q", name)
		return false, nil
	}
	if r.sendFlag {
		return false, stateError("setRequestHeader", "send has already been called")
	}
	setHeader(r.headers, name, value)
	return true, nil
}

// GetRequestHeader returns a header set for the next send, or "" once the
// request is in flight.
func (r *Request) GetRequestHeader(name string) string {
	if r.sendFlag {
		return ""
	}
	for k, v := range r.headers {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// GetResponseHeader returns the named response header, or "" before
// headers arrive or after an error.
func (r *Request) GetResponseHeader(name string) string {
	if r.state <= Opened || r.errorFlag {
		return ""
	}
	return r.head.Get(name)
}

// GetAllResponseHeaders returns the response headers as lower-cased
// "name: value" lines joined by CRLF. Set-Cookie headers are left out.
func (r *Request) GetAllResponseHeaders() string {
	if r.state < HeadersReceived || r.errorFlag {
		return ""
	}
	return formatHeaders(r.head)
}

func formatHeaders(head *transport.Head) string {
	var lines []string
	for _, name := range head.Names() {
		if name == "set-cookie" || name == "set-cookie2" {
			continue
		}
		lines = append(lines, name+": "+head.Get(name))
	}
	return strings.Join(lines, "\r\n")
}
