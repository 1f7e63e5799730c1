package output

import (
	"strings"
	"time"

	"github.com/abdul-hamid-achik/xmlhttp/packages/assertions"
	"github.com/abdul-hamid-achik/xmlhttp/packages/events"
	"github.com/abdul-hamid-achik/xmlhttp/packages/xhr"
)

// Formats lists the accepted output formats.
var Formats = []string{"console", "json"}

// Formatter renders one or more fetches.
type Formatter interface {
	FormatHeader(version string)
	FormatEvent(t Trace)
	FormatReport(r *Report)
	FormatError(err error)
}

// Flushable is implemented by formatters that buffer until the run ends.
type Flushable interface {
	Flush() error
}

// Trace is one event seen on a request.
type Trace struct {
	Type             string        `json:"type"`
	State            string        `json:"state"`
	Loaded           int64         `json:"loaded,omitempty"`
	Total            int64         `json:"total,omitempty"`
	LengthComputable bool          `json:"lengthComputable,omitempty"`
	Elapsed          time.Duration `json:"elapsed"`
}

// Watch forwards every event x fires to f. The returned func detaches the
// listeners.
func Watch(x *xhr.Request, f Formatter) func() {
	start := time.Now()
	ids := make(map[events.Type]events.ListenerID)
	for _, typ := range events.Types() {
		typ := typ
		ids[typ] = x.AddEventListener(typ, func(ev events.Event) {
			f.FormatEvent(Trace{
				Type:             typ.String(),
				State:            x.ReadyState().String(),
				Loaded:           ev.Loaded,
				Total:            ev.Total,
				LengthComputable: ev.LengthComputable,
				Elapsed:          time.Since(start),
			})
		})
	}
	return func() {
		for typ, id := range ids {
			x.RemoveEventListener(typ, id)
		}
	}
}

// Header is one response header line.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Report is the outcome of one fetch.
type Report struct {
	Method       string
	URL          string
	ResponseURL  string
	ResponseType string
	State        string
	Status       int
	StatusText   string
	Headers      []Header
	Body         []byte
	Duration     time.Duration
	Err          error
	Captures     map[string]any
	Assertions   []*assertions.Result
}

// Passed reports whether the fetch completed and every assertion held.
func (r *Report) Passed() bool {
	return r.Err == nil && len(assertions.Failed(r.Assertions)) == 0
}

// NewReport snapshots x, which should be DONE.
func NewReport(x *xhr.Request, method, url string, d time.Duration) *Report {
	return &Report{
		Method:       method,
		URL:          url,
		ResponseURL:  x.ResponseURL(),
		ResponseType: string(x.ResponseType()),
		State:        x.ReadyState().String(),
		Status:       x.Status(),
		StatusText:   x.StatusText(),
		Headers:      parseHeaders(x.GetAllResponseHeaders()),
		Body:         x.ResponseBytes(),
		Duration:     d,
		Err:          x.Err(),
	}
}

func parseHeaders(raw string) []Header {
	if raw == "" {
		return nil
	}
	lines := strings.Split(raw, "\r\n")
	headers := make([]Header, 0, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		headers = append(headers, Header{Name: name, Value: value})
	}
	return headers
}
