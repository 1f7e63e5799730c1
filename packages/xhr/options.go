package xhr

import (
	"net/http"
	"net/url"

	"github.com/abdul-hamid-achik/xmlhttp/packages/body"
	"github.com/abdul-hamid-achik/xmlhttp/packages/syncbridge"
	"github.com/abdul-hamid-achik/xmlhttp/packages/transport"
	"github.com/sirupsen/logrus"
)

// DefaultUserAgent is sent unless the caller sets User-Agent.
const DefaultUserAgent = "xmlhttp"

// DefaultHeaders returns the headers every request starts with.
func DefaultHeaders() http.Header {
	return http.Header{
		"User-Agent": {DefaultUserAgent},
		"Accept":     {"*/*"},
	}
}

// Option configures a Request.
type Option func(*Request)

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Request) {
		r.logger = l
	}
}

// WithDispatcher shares d, and its connection pool, between requests.
// Transport options are ignored when a dispatcher is given.
func WithDispatcher(d *transport.Dispatcher) Option {
	return func(r *Request) {
		r.dispatcher = d
	}
}

// WithTransportOptions configures the request's own dispatcher.
func WithTransportOptions(opts ...transport.DispatcherOption) Option {
	return func(r *Request) {
		r.transportOpts = append(r.transportOpts, opts...)
	}
}

// WithDisableHeaderCheck lets SetRequestHeader set forbidden headers.
func WithDisableHeaderCheck(disabled bool) Option {
	return func(r *Request) {
		r.checker.Disabled = disabled
	}
}

// WithDefaultHeaders adds to or replaces the headers each Open starts with.
func WithDefaultHeaders(h http.Header) Option {
	return func(r *Request) {
		for name, values := range h {
			if len(values) > 0 {
				setHeader(r.defaults, name, values[len(values)-1])
			}
		}
	}
}

// WithBaseURL resolves relative URLs passed to Open against base.
func WithBaseURL(base *url.URL) Option {
	return func(r *Request) {
		r.baseURL = base
	}
}

// WithBridge sets the bridge synchronous sends block in.
func WithBridge(b *syncbridge.Bridge) Option {
	return func(r *Request) {
		r.bridge = b
	}
}

func WithDocumentParser(p body.DocumentParser) Option {
	return func(r *Request) {
		r.materializerOpts = append(r.materializerOpts, body.WithDocumentParser(p))
	}
}

// WithResponseType sets the initial response type.
func WithResponseType(rt body.ResponseType) Option {
	return func(r *Request) {
		r.responseType = rt
	}
}
