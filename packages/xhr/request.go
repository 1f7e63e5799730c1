package xhr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/abdul-hamid-achik/xmlhttp/packages/body"
	"github.com/abdul-hamid-achik/xmlhttp/packages/eventloop"
	"github.com/abdul-hamid-achik/xmlhttp/packages/events"
	"github.com/abdul-hamid-achik/xmlhttp/packages/policy"
	"github.com/abdul-hamid-achik/xmlhttp/packages/syncbridge"
	"github.com/abdul-hamid-achik/xmlhttp/packages/transport"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Request is a browser-style request object. It is not safe for
// concurrent use; call it only from its loop's goroutine.
type Request struct {
	id     string
	loop   *eventloop.Loop
	logger logrus.FieldLogger
	target events.Target

	dispatcher       *transport.Dispatcher
	transportOpts    []transport.DispatcherOption
	bridge           *syncbridge.Bridge
	materializer     *body.Materializer
	materializerOpts []body.Option
	checker          policy.Checker
	defaults         http.Header
	baseURL          *url.URL

	// settings, reset on each Open
	method   string
	url      *url.URL
	async    bool
	user     string
	password string
	headers  http.Header

	state       State
	sendFlag    bool
	errorFlag   bool
	abortedFlag bool
	err         error

	// gen identifies the current transfer; callbacks of older ones are dropped
	gen    uint64
	cancel context.CancelFunc

	responseType body.ResponseType
	head         *transport.Head
	status       int
	statusText   string
	acc          *body.Accumulator
	loaded       int64
	result       body.Result
}

// New creates an UNSENT request bound to loop.
func New(loop *eventloop.Loop, opts ...Option) (*Request, error) {
	r := &Request{
		id:       uuid.NewString(),
		loop:     loop,
		defaults: DefaultHeaders(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		r.logger = l
	}
	r.logger = r.logger.WithField("request_id", r.id)

	if r.dispatcher == nil {
		dopts := append([]transport.DispatcherOption{transport.WithLogger(r.logger)}, r.transportOpts...)
		d, err := transport.NewDispatcher(dopts...)
		if err != nil {
			return nil, err
		}
		r.dispatcher = d
	}
	if r.bridge == nil {
		r.bridge = syncbridge.New(syncbridge.WithLogger(r.logger))
	}
	r.materializer = body.New(append([]body.Option{body.WithLogger(r.logger)}, r.materializerOpts...)...)
	r.headers = cloneHeader(r.defaults)
	r.acc = body.NewAccumulator(r.responseType)
	return r, nil
}

// ID returns the request id attached to every log entry of r.
func (r *Request) ID() string {
	return r.id
}

// Open prepares a request, aborting any transfer still in flight.
func (r *Request) Open(method, rawURL string, async bool) error {
	return r.OpenWithCredentials(method, rawURL, async, "", "")
}

// OpenWithCredentials is Open with basic auth credentials. Credentials in
// the URL are used when user is empty.
func (r *Request) OpenWithCredentials(method, rawURL string, async bool, user, password string) error {
	r.Abort()
	r.errorFlag = false
	r.abortedFlag = false
	r.err = nil

	if !policy.IsAllowedMethod(method) {
		return &Error{Kind: KindPolicy, Op: "open", Err: fmt.Errorf("%w: %q", ErrSecurity, method)}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return &Error{Kind: KindProtocol, Op: "open", Err: err}
	}
	if r.baseURL != nil {
		u = r.baseURL.ResolveReference(u)
	}
	if user == "" && u.User != nil {
		user = u.User.Username()
		password, _ = u.User.Password()
	}
	u.User = nil

	r.method = policy.NormalizeMethod(method)
	r.url = u
	r.async = async
	r.user = user
	r.password = password
	r.setState(Opened)
	return nil
}

// Send starts the transfer. See SendContext.
func (r *Request) Send(payload []byte) error {
	return r.SendContext(context.Background(), payload)
}

// SendContext starts the transfer with payload as the body. Asynchronous
// requests return at once and report the outcome through events and Err.
// Synchronous requests block until DONE; a cancelled ctx ends them like
// Abort and the returned error wraps ErrAborted.
func (r *Request) SendContext(ctx context.Context, payload []byte) error {
	if r.state != Opened {
		return stateError("send", "connection must be opened before send")
	}
	if r.sendFlag {
		return stateError("send", "send has already been called")
	}

	target, err := transport.Prepare(r.method, r.url)
	if err != nil {
		return &Error{Kind: KindProtocol, Op: "send", Err: err}
	}

	r.resetResponse()
	req := &transport.Request{
		Method:   r.method,
		URL:      target,
		Header:   cloneHeader(r.headers),
		Body:     payload,
		User:     r.user,
		Password: r.password,
	}
	r.logger.WithFields(logrus.Fields{
		"method": req.Method,
		"url":    target.String(),
		"async":  r.async,
	}).Debug("sending request")

	r.sendFlag = true
	if !r.async {
		return r.sendSync(ctx, req)
	}
	r.startAsync(ctx, req)
	r.dispatch(events.LoadStart)
	return nil
}

// Abort stops a transfer in flight, firing abort and loadend, and resets
// the request to UNSENT.
func (r *Request) Abort() {
	r.gen++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.headers = cloneHeader(r.defaults)
	r.result = body.Result{}
	r.acc = body.NewAccumulator(r.responseType)
	r.errorFlag = true
	r.abortedFlag = true

	if r.state != Unsent && (r.state != Opened || r.sendFlag) && r.state != Done {
		r.sendFlag = false
		r.err = &Error{Kind: KindAbort, Op: "abort", Err: ErrAborted}
		r.logger.Debug("request aborted")
		r.setState(Done)
	}
	r.sendFlag = false
	r.state = Unsent
}

func (r *Request) resetResponse() {
	r.head = nil
	r.status = 0
	r.statusText = ""
	r.loaded = 0
	r.result = body.Result{}
	r.acc = body.NewAccumulator(r.responseType)
	r.errorFlag = false
	r.err = nil
}

func (r *Request) startAsync(parent context.Context, req *transport.Request) {
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel

	gen := r.gen
	queue := r.loop.NewTaskQueue()
	d := r.dispatcher
	h := &loopHandler{queue: queue, r: r, gen: gen}

	go func() {
		defer queue.Close()
		err := d.Do(ctx, req, h)
		queue.Queue(func() error {
			r.finish(parent, gen, err)
			return nil
		})
	}()
}

func (r *Request) sendSync(ctx context.Context, req *transport.Request) error {
	d := r.dispatcher
	env, err := r.bridge.Run(ctx, func(ctx context.Context, h transport.Handler) error {
		return d.Do(ctx, req, h)
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.Abort()
		return &Error{Kind: KindAbort, Op: "send", Err: fmt.Errorf("%w: %w", ErrAborted, ctxErr)}
	}
	if err != nil {
		status := syncbridge.StatusWorkerFailed
		if req.URL.Scheme == "file" {
			status = 0
		}
		r.handleError(err, status)
		return r.err
	}

	r.applyHead(env.Head())
	r.loaded = int64(len(env.Body))
	r.result = r.materializer.FromBytes(r.responseType, r.head.ContentType(), env.Body)
	r.sendFlag = false
	r.setState(Done)
	return nil
}

// current reports whether a callback of transfer gen may still act.
func (r *Request) current(gen uint64) bool {
	return gen == r.gen && r.sendFlag
}

func (r *Request) onHead(gen uint64, head *transport.Head) {
	if !r.current(gen) {
		return
	}
	r.applyHead(head)
	r.setState(HeadersReceived)
}

func (r *Request) onData(gen uint64, chunk []byte) {
	if !r.current(gen) {
		return
	}
	_, _ = r.acc.Write(chunk)
	r.loaded = r.acc.Len()
	r.setState(Loading)
	// a readystatechange listener may have aborted or reopened
	if !r.current(gen) {
		return
	}
	r.dispatch(events.Progress)
}

func (r *Request) finish(parent context.Context, gen uint64, err error) {
	if gen != r.gen {
		return
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if !r.sendFlag {
		return
	}
	if err != nil {
		if errors.Is(parent.Err(), context.Canceled) {
			r.Abort()
			return
		}
		r.handleError(err, 0)
		return
	}

	r.result = r.materializer.Finalize(r.acc, r.head.ContentType())
	r.sendFlag = false
	r.setState(Done)
}

func (r *Request) applyHead(head *transport.Head) {
	r.head = head
	r.status = head.StatusCode
	r.statusText = head.StatusText
}

func (r *Request) handleError(err error, status int) {
	r.status = status
	r.statusText = err.Error()
	r.err = &Error{Kind: KindTransport, Op: "send", Err: err}
	r.errorFlag = true
	r.sendFlag = false
	r.logger.WithError(err).Debug("transfer failed")
	r.setState(Done)
}

// setState moves to s and fires the events the transition calls for.
func (r *Request) setState(s State) {
	if r.state == s {
		return
	}
	r.state = s

	if r.async || s < Opened || s == Done {
		r.dispatch(events.ReadyStateChange)
	}
	if s != Done {
		return
	}

	terminal := events.Load
	switch {
	case r.abortedFlag:
		terminal = events.Abort
	case r.errorFlag:
		terminal = events.Error
	}
	r.dispatch(terminal)
	r.dispatch(events.LoadEnd)
}

// dispatch fires typ inline, or posts every invocation to the end of the
// loop turn when the request is DONE.
func (r *Request) dispatch(typ events.Type) {
	ev := events.Event{Type: typ}
	if typ != events.ReadyStateChange {
		ev.Loaded = r.loaded
		if r.head != nil && r.head.ContentLength >= 0 {
			ev.Total = r.head.ContentLength
			ev.LengthComputable = true
		}
	}

	if r.state == Done {
		for _, call := range r.target.Invocations(ev) {
			r.loop.Post(call)
		}
		return
	}
	r.target.Dispatch(ev)
}

// loopHandler hands transport callbacks from the worker to the loop.
type loopHandler struct {
	queue *eventloop.TaskQueue
	r     *Request
	gen   uint64
}

func (h *loopHandler) Head(head *transport.Head) {
	h.queue.Queue(func() error {
		h.r.onHead(h.gen, head)
		return nil
	})
}

func (h *loopHandler) Data(p []byte) {
	chunk := make([]byte, len(p))
	copy(chunk, p)
	h.queue.Queue(func() error {
		h.r.onData(h.gen, chunk)
		return nil
	})
}

// ReadyState returns the current ready state.
func (r *Request) ReadyState() State {
	return r.state
}

// Status returns the HTTP status, 0 until headers arrive or after a
// network error, 503 after a failed synchronous send.
func (r *Request) Status() int {
	return r.status
}

// StatusText returns the status text, or the error message after a failure.
func (r *Request) StatusText() string {
	return r.statusText
}

// Err returns the error that ended the last transfer, if any.
func (r *Request) Err() error {
	return r.err
}

// ResponseType returns how the body will be materialized.
func (r *Request) ResponseType() body.ResponseType {
	return r.responseType
}

// SetResponseType sets how the body is materialized. It fails once the
// body is loading.
func (r *Request) SetResponseType(rt body.ResponseType) error {
	if r.state == Loading || r.state == Done {
		return stateError("responseType", "response type cannot be changed while loading or when done")
	}
	r.responseType = rt
	// nothing has been received before LOADING
	r.acc = body.NewAccumulator(rt)
	return nil
}

// Response returns the typed response: a string for text types while
// loading and when done, otherwise the value built at DONE (a JSON value,
// []byte, *body.Blob) or nil.
func (r *Request) Response() any {
	switch {
	case r.state == Done:
		return r.result.Value
	case r.state == Loading && r.responseType.KeepsText():
		return r.acc.Text()
	}
	return nil
}

// ResponseText returns the text received so far for "" and "text"
// response types, and "" for every other type.
func (r *Request) ResponseText() string {
	if !r.responseType.KeepsText() {
		return ""
	}
	switch r.state {
	case Done:
		return r.result.Text
	case Loading:
		return r.acc.Text()
	}
	return ""
}

// ResponseBytes returns the body as bytes once DONE, whatever the response
// type. JSON values are re-encoded and documents rendered back to HTML.
func (r *Request) ResponseBytes() []byte {
	if r.state != Done {
		return nil
	}
	switch v := r.result.Value.(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	case *body.Blob:
		return v.Bytes()
	case nil:
		if r.result.Document != nil {
			html, err := r.result.Document.Html()
			if err == nil {
				return []byte(html)
			}
		}
		return nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return data
	}
}

// ResponseXML returns the parsed document for the "document" response type.
func (r *Request) ResponseXML() *goquery.Document {
	if r.state != Done {
		return nil
	}
	return r.result.Document
}

// ResponseURL returns the URL of the final response, after redirects.
func (r *Request) ResponseURL() string {
	if r.head == nil {
		return ""
	}
	return r.head.URL
}

// Head returns the final response head, or nil before headers arrive.
func (r *Request) Head() *transport.Head {
	return r.head
}

// SetHandler assigns the single handler for typ; nil clears it.
func (r *Request) SetHandler(typ events.Type, fn events.Listener) {
	r.target.SetHandler(typ, fn)
}

// SetOnReadyStateChange sets the readystatechange handler; nil clears it.
func (r *Request) SetOnReadyStateChange(fn events.Listener) {
	r.target.SetHandler(events.ReadyStateChange, fn)
}

// AddEventListener appends fn to the listeners of typ.
func (r *Request) AddEventListener(typ events.Type, fn events.Listener) events.ListenerID {
	return r.target.AddListener(typ, fn)
}

// RemoveEventListener removes the listener of typ registered under id.
func (r *Request) RemoveEventListener(typ events.Type, id events.ListenerID) bool {
	return r.target.RemoveListener(typ, id)
}
