package transport

import (
	"bytes"
	"net/http"
	"sort"
	"strings"
)

// Head describes the final response of a transfer, after redirects.
type Head struct {
	StatusCode int
	StatusText string
	Header     http.Header
	// URL is the address the response came from.
	URL string
	// ContentLength is the decoded body size, or -1 when unknown.
	ContentLength int64
}

// Get returns the named header, comma-joining repeated values.
func (h *Head) Get(key string) string {
	if h == nil {
		return ""
	}
	for k, v := range h.Header {
		if strings.EqualFold(k, key) {
			return strings.Join(v, ", ")
		}
	}
	return ""
}

// ContentType returns the Content-Type header.
func (h *Head) ContentType() string {
	return h.Get("Content-Type")
}

// Names returns the lower-cased header names in sorted order.
func (h *Head) Names() []string {
	if h == nil {
		return nil
	}
	names := make([]string, 0, len(h.Header))
	for k := range h.Header {
		names = append(names, strings.ToLower(k))
	}
	sort.Strings(names)
	return names
}

// IsSuccess reports a 2xx status.
func (h *Head) IsSuccess() bool {
	return h.StatusCode >= 200 && h.StatusCode < 300
}

// IsRedirect reports a status this package re-issues on.
func IsRedirect(status int) bool {
	return status == http.StatusFound || status == http.StatusSeeOther || status == http.StatusTemporaryRedirect
}

// statusText strips the numeric prefix net/http puts in Response.Status.
func statusText(resp *http.Response) string {
	if i := strings.IndexByte(resp.Status, ' '); i >= 0 {
		return resp.Status[i+1:]
	}
	return http.StatusText(resp.StatusCode)
}

// Collector is a Handler that keeps the head and the whole body.
type Collector struct {
	Response *Head
	body     bytes.Buffer
}

func (c *Collector) Head(h *Head) {
	c.Response = h
}

func (c *Collector) Data(p []byte) {
	c.body.Write(p)
}

// Bytes returns the body received so far. The slice may have spare capacity.
func (c *Collector) Bytes() []byte {
	return c.body.Bytes()
}
