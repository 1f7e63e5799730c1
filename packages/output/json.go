package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/tidwall/gjson"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary  `json:"summary"`
	Requests []JSONReport `json:"requests"`
	Errors   []string     `json:"errors,omitempty"`
	Time     string       `json:"time"`
}

type JSONSummary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// JSONReport is one fetch with the events it fired.
type JSONReport struct {
	Method       string          `json:"method"`
	URL          string          `json:"url"`
	ResponseURL  string          `json:"responseURL,omitempty"`
	ResponseType string          `json:"responseType"`
	State        string          `json:"readyState"`
	Status       int             `json:"status"`
	StatusText   string          `json:"statusText"`
	Headers      []Header        `json:"headers,omitempty"`
	Body         json.RawMessage `json:"body,omitempty"`
	Duration     float64         `json:"duration"`
	Passed       bool            `json:"passed"`
	Error        string          `json:"error,omitempty"`
	Events       []Trace         `json:"events,omitempty"`
	Captures     map[string]any  `json:"captures,omitempty"`
	Assertions   []JSONAssertion `json:"assertions,omitempty"`
}

// JSONAssertion represents an assertion result
type JSONAssertion struct {
	Subject  string `json:"subject"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// JSONFormatter buffers reports and writes them on Flush.
type JSONFormatter struct {
	writer  io.Writer
	pending []Trace
	reports []JSONReport
	errors  []string
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatHeader(version string) {}

// FormatEvent holds t until the report of its request arrives.
func (f *JSONFormatter) FormatEvent(t Trace) {
	f.pending = append(f.pending, t)
}

func (f *JSONFormatter) FormatReport(r *Report) {
	out := JSONReport{
		Method:       r.Method,
		URL:          r.URL,
		ResponseURL:  r.ResponseURL,
		ResponseType: r.ResponseType,
		State:        r.State,
		Status:       r.Status,
		StatusText:   r.StatusText,
		Headers:      r.Headers,
		Body:         jsonBody(r.Body, r.ResponseType == "arraybuffer" || r.ResponseType == "blob"),
		Duration:     float64(r.Duration.Microseconds()) / 1000,
		Passed:       r.Passed(),
		Events:       f.pending,
		Captures:     r.Captures,
	}
	f.pending = nil

	if r.Err != nil {
		out.Error = r.Err.Error()
	}

	for _, a := range r.Assertions {
		out.Assertions = append(out.Assertions, JSONAssertion{
			Subject:  a.Subject,
			Operator: a.Operator,
			Expected: a.Expected,
			Actual:   a.Actual,
			Passed:   a.Passed,
			Message:  a.Message,
		})
	}

	f.reports = append(f.reports, out)
}

// jsonBody embeds JSON bodies as is, binary bodies as base64 and everything
// else as a string.
func jsonBody(body []byte, binary bool) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	var v any = string(body)
	switch {
	case binary:
		v = body
	case gjson.ValidBytes(body):
		return body
	}
	quoted, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return quoted
}

func (f *JSONFormatter) FormatError(err error) {
	f.errors = append(f.errors, err.Error())
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush() error {
	output := JSONOutput{
		Requests: f.reports,
		Errors:   f.errors,
		Time:     time.Now().Format(time.RFC3339),
	}
	if output.Requests == nil {
		output.Requests = []JSONReport{}
	}
	for _, r := range f.reports {
		output.Summary.Total++
		if r.Passed {
			output.Summary.Passed++
		} else {
			output.Summary.Failed++
		}
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
