package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
	// readChunkSize is the size of the buffer response bodies are read with
	readChunkSize = 32 * 1024
)

// Handler receives the response of a transfer.
type Handler interface {
	// Head is called once with the final response, after redirects.
	Head(h *Head)
	// Data is called for each body chunk. p is only valid during the call.
	Data(p []byte)
}

// Dispatcher sends Requests over http, https or the local filesystem.
type Dispatcher struct {
	httpClient      *http.Client
	roundTripper    http.RoundTripper
	tlsOptions      TLSOptions
	timeout         time.Duration
	maxRedirects    int
	detachKeepAlive bool
	decompress      bool
	fs              afero.Fs
	logger          logrus.FieldLogger
}

type DispatcherOption func(*Dispatcher)

// NewDispatcher builds a Dispatcher. It fails only when TLS material cannot
// be loaded.
func NewDispatcher(opts ...DispatcherOption) (*Dispatcher, error) {
	d := &Dispatcher{
		maxRedirects: DefaultMaxRedirects,
		decompress:   true,
		fs:           afero.NewOsFs(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = logrus.StandardLogger()
	}

	transport, err := d.buildRoundTripper()
	if err != nil {
		return nil, err
	}

	// redirects are followed by Do so 302/303/307 keep their own semantics
	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	d.httpClient = &http.Client{
		Transport:     transport,
		Timeout:       d.timeout,
		CheckRedirect: redirectPolicy,
	}

	return d, nil
}

func (d *Dispatcher) buildRoundTripper() (http.RoundTripper, error) {
	tlsOpts := d.tlsOptions
	if d.roundTripper != nil {
		t, ok := d.roundTripper.(*http.Transport)
		if !ok || tlsOpts.IsZero() {
			return d.roundTripper, nil
		}
		cfg, err := tlsOpts.Config()
		if err != nil {
			return nil, err
		}
		t = t.Clone()
		t.TLSClientConfig = cfg
		return t, nil
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		// bodies are decoded by the dispatcher itself
		DisableCompression: true,
		DisableKeepAlives:  d.detachKeepAlive,
	}

	if !tlsOpts.IsZero() {
		cfg, err := tlsOpts.Config()
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = cfg
	}

	return transport, nil
}

// WithRoundTripper sets the connection reuse handle shared between requests.
func WithRoundTripper(rt http.RoundTripper) DispatcherOption {
	return func(d *Dispatcher) {
		d.roundTripper = rt
	}
}

// WithTLS sets the TLS material for https requests.
func WithTLS(o TLSOptions) DispatcherOption {
	return func(d *Dispatcher) {
		d.tlsOptions = o
	}
}

// WithTimeout bounds a whole transfer. Zero means no limit.
func WithTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.timeout = t
	}
}

func WithMaxRedirects(max int) DispatcherOption {
	return func(d *Dispatcher) {
		d.maxRedirects = max
	}
}

// WithDetachKeepAlive closes each connection after its response instead of
// returning it to the keep-alive pool.
func WithDetachKeepAlive(detach bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.detachKeepAlive = detach
	}
}

// WithDecompression toggles Accept-Encoding and transparent body decoding.
func WithDecompression(on bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.decompress = on
	}
}

// WithFs sets the filesystem file URLs are read from.
func WithFs(fs afero.Fs) DispatcherOption {
	return func(d *Dispatcher) {
		d.fs = fs
	}
}

func WithLogger(l logrus.FieldLogger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// Do runs req to completion, reporting the response to h. It returns once
// the body has been fully delivered or the transfer failed.
func (d *Dispatcher) Do(ctx context.Context, req *Request, h Handler) error {
	u, err := Prepare(req.Method, req.URL)
	if err != nil {
		return err
	}

	if u.Scheme == "file" {
		return d.doFile(ctx, u, h)
	}
	return d.doHTTP(ctx, req, u, h)
}

func (d *Dispatcher) doHTTP(ctx context.Context, req *Request, target *url.URL, h Handler) error {
	method := req.Method
	payload := req.Body
	if !carriesBody(method) {
		payload = nil
	}

	for hops := 0; ; hops++ {
		resp, err := d.roundTrip(ctx, req, method, target, payload)
		if err != nil {
			return err
		}

		location := resp.Header.Get("Location")
		if !IsRedirect(resp.StatusCode) || location == "" {
			return d.deliver(resp, target, h)
		}
		discard(resp)

		if hops >= d.maxRedirects {
			return fmt.Errorf("%w: stopped after %d redirects", ErrRedirectLoop, hops)
		}

		next, err := target.Parse(location)
		if err != nil {
			return fmt.Errorf("invalid redirect location %q: %w", location, err)
		}
		if next.Scheme != "http" && next.Scheme != "https" {
			return fmt.Errorf("%w: redirect to %q", ErrProtocolNotSupported, next.Scheme)
		}

		if resp.StatusCode == http.StatusSeeOther && method != http.MethodHead {
			method = http.MethodGet
			payload = nil
		}

		d.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"from":   target.String(),
			"to":     next.String(),
			"method": method,
		}).Debug("following redirect")

		target = next
	}
}

// roundTrip sends one request. A connection reset on a reused keep-alive
// connection is retried once on a fresh connection.
func (d *Dispatcher) roundTrip(ctx context.Context, req *Request, method string, target *url.URL, payload []byte) (*http.Response, error) {
	header, contentLength := outgoingHeader(req, method, payload)
	if d.decompress && !HasHeader(header, "Accept-Encoding") {
		header.Set("Accept-Encoding", AcceptEncoding)
	}

	for attempt := 0; ; attempt++ {
		var reused bool
		trace := &httptrace.ClientTrace{
			GotConn: func(info httptrace.GotConnInfo) {
				reused = info.Reused
			},
		}

		var body io.Reader
		if carriesBody(method) {
			body = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), method, target.String(), body)
		if err != nil {
			return nil, err
		}
		httpReq.Header = header.Clone()
		httpReq.ContentLength = contentLength
		if contentLength == 0 && body != nil {
			httpReq.Body = http.NoBody
			httpReq.GetBody = nil
		}
		if host := headerValue(header, "Host"); host != "" {
			httpReq.Host = host
		}
		httpReq.Close = d.detachKeepAlive

		resp, err := d.httpClient.Do(httpReq)
		if err == nil {
			return resp, nil
		}
		if attempt == 0 && reused && isConnReset(err) && ctx.Err() == nil {
			d.logger.WithError(err).WithField("url", target.String()).Debug("connection reset on reused connection, retrying")
			continue
		}
		return nil, err
	}
}

// deliver reports the head and streams the decoded body to h.
func (d *Dispatcher) deliver(resp *http.Response, target *url.URL, h Handler) error {
	defer resp.Body.Close()

	var reader io.ReadCloser = resp.Body
	contentLength := resp.ContentLength
	encoding := resp.Header.Get("Content-Encoding")
	decoding := false
	if d.decompress && hasBody(resp) {
		if decoded, ok := decodeBody(encoding, resp.Body); ok {
			d.logger.WithField("encoding", encoding).Debug("decoding response body")
			contentLength = -1
			reader = decoded
			decoding = true
			defer decoded.Close()
		}
	}

	h.Head(&Head{
		StatusCode:    resp.StatusCode,
		StatusText:    statusText(resp),
		Header:        resp.Header,
		URL:           target.String(),
		ContentLength: contentLength,
	})

	buf := make([]byte, readChunkSize)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			h.Data(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if decoding {
				return fmt.Errorf("decoding %s body: %w", encoding, err)
			}
			return err
		}
	}
}

// hasBody reports whether resp may carry a body. HEAD, 204 and 304
// responses keep their Content-Encoding header but have nothing to decode.
func hasBody(resp *http.Response) bool {
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return false
	}
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusNotModified:
		return false
	}
	return resp.ContentLength != 0
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
}

func isConnReset(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	return strings.Contains(err.Error(), "connection reset by peer")
}
