package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/xmlhttp/packages/assertions"
	"github.com/abdul-hamid-achik/xmlhttp/packages/body"
	"github.com/abdul-hamid-achik/xmlhttp/packages/eventloop"
	"github.com/abdul-hamid-achik/xmlhttp/packages/transport"
	"github.com/abdul-hamid-achik/xmlhttp/packages/xhr"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type traceRecorder struct {
	ConsoleFormatter
	traces []Trace
}

func (r *traceRecorder) FormatEvent(t Trace) {
	r.traces = append(r.traces, t)
}

func fetchFile(t *testing.T, name string, data []byte, rt body.ResponseType, f Formatter) *Report {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, name, data, 0o644))

	loop := eventloop.New()
	x, err := xhr.New(loop, xhr.WithTransportOptions(transport.WithFs(fs)), xhr.WithResponseType(rt))
	require.NoError(t, err)

	url := "file://" + name
	start := time.Now()
	require.NoError(t, loop.Run(func() error {
		if err := x.Open("GET", url, false); err != nil {
			return err
		}
		Watch(x, f)
		return x.Send(nil)
	}))
	return NewReport(x, "GET", url, time.Since(start))
}

func TestWatch(t *testing.T) {
	rec := &traceRecorder{}
	report := fetchFile(t, "/hello.txt", []byte("hello"), body.TypeText, rec)

	var types []string
	for _, tr := range rec.traces {
		types = append(types, tr.Type)
		assert.Equal(t, "DONE", tr.State)
	}
	assert.Equal(t, []string{"readystatechange", "load", "loadend"}, types)

	assert.Equal(t, "DONE", report.State)
	assert.Equal(t, 200, report.Status)
	assert.Equal(t, "hello", string(report.Body))
	assert.True(t, report.Passed())
}

func TestWatch_Detach(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.txt", []byte("a"), 0o644))

	loop := eventloop.New()
	x, err := xhr.New(loop, xhr.WithTransportOptions(transport.WithFs(fs)))
	require.NoError(t, err)

	rec := &traceRecorder{}
	detach := Watch(x, rec)
	detach()

	require.NoError(t, loop.Run(func() error {
		if err := x.Open("GET", "file:///a.txt", false); err != nil {
			return err
		}
		return x.Send(nil)
	}))
	assert.Empty(t, rec.traces)
}

func TestParseHeaders(t *testing.T) {
	got := parseHeaders("content-type: text/plain\r\nx-a: 1, 2\r\nbroken")
	assert.Equal(t, []Header{
		{Name: "content-type", Value: "text/plain"},
		{Name: "x-a", Value: "1, 2"},
	}, got)
	assert.Nil(t, parseHeaders(""))
}

func sampleReport() *Report {
	return &Report{
		Method:       "GET",
		URL:          "http://example.test/users/1",
		ResponseURL:  "http://example.test/users/1",
		ResponseType: "json",
		State:        "DONE",
		Status:       200,
		StatusText:   "OK",
		Headers:      []Header{{Name: "content-type", Value: "application/json"}},
		Body:         []byte(`{"id":1}`),
		Duration:     12 * time.Millisecond,
		Captures:     map[string]any{"id": float64(1)},
	}
}

func TestConsoleFormatter_Report(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	f.FormatReport(sampleReport())

	out := buf.String()
	assert.Contains(t, out, "GET http://example.test/users/1")
	assert.Contains(t, out, "200 OK (12ms)")
	assert.Contains(t, out, "id = 1")
	assert.Contains(t, out, `"id": 1`)
	assert.NotContains(t, out, "content-type")
	assert.NotContains(t, out, "\x1b[")
}

func TestConsoleFormatter_Verbose(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))

	f.FormatReport(sampleReport())
	assert.Contains(t, buf.String(), "content-type: application/json")
}

func TestConsoleFormatter_BinaryBody(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	r := sampleReport()
	r.ResponseType = "arraybuffer"
	r.Body = []byte{0x00, 0x00, 0x80, 0x3f}
	f.FormatReport(r)

	assert.Contains(t, buf.String(), "00000000  00 00 80 3f")
}

func TestConsoleFormatter_Truncates(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	r := sampleReport()
	r.ResponseType = "text"
	r.Body = bytes.Repeat([]byte("a"), maxBodyBytes+10)
	f.FormatReport(r)

	assert.Contains(t, buf.String(), "... 10 more bytes")
}

func TestConsoleFormatter_Failures(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithQuiet(true))

	f.FormatReport(sampleReport())
	assert.Empty(t, buf.String())

	r := sampleReport()
	r.Status = 503
	r.StatusText = "worker failed"
	r.Err = errors.New("sync worker failed")
	r.Assertions = []*assertions.Result{
		{Subject: "status", Operator: "==", Expected: 200, Actual: 503, Message: "expected 200, got 503"},
	}
	f.FormatReport(r)

	out := buf.String()
	assert.Contains(t, out, "(sync worker failed)")
	assert.Contains(t, out, "✗ status ==")
	assert.Contains(t, out, "Actual:   503")
	assert.NotContains(t, out, `"id"`)
}

func TestConsoleFormatter_Event(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	f.FormatEvent(Trace{Type: "progress", State: "LOADING", Loaded: 1024, Total: 2048, LengthComputable: true, Elapsed: 1500 * time.Microsecond})
	f.FormatEvent(Trace{Type: "progress", State: "LOADING", Loaded: 10})

	out := buf.String()
	assert.Contains(t, out, "1.5ms progress")
	assert.Contains(t, out, "LOADING 1024/2048\n")
	assert.Contains(t, out, "LOADING 10\n")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "[array with 2 items]", formatValue([]any{1, 2}, 10))
	assert.Equal(t, "{object with 1 keys}", formatValue(map[string]any{"a": 1}, 10))
	assert.Equal(t, "abc...", formatValue("abcdef", 3))
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))

	f.FormatEvent(Trace{Type: "load", State: "DONE"})
	f.FormatEvent(Trace{Type: "loadend", State: "DONE"})
	f.FormatReport(sampleReport())

	bin := sampleReport()
	bin.ResponseType = "arraybuffer"
	bin.Body = []byte{0x00, 0x00, 0x80, 0x3f}
	bin.Assertions = []*assertions.Result{{Subject: "status", Operator: "==", Expected: 201, Actual: 200}}
	f.FormatReport(bin)
	f.FormatError(errors.New("boom"))

	require.NoError(t, f.Flush())

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, JSONSummary{Total: 2, Passed: 1, Failed: 1}, out.Summary)
	assert.Equal(t, []string{"boom"}, out.Errors)

	require.Len(t, out.Requests, 2)
	assert.JSONEq(t, `{"id":1}`, string(out.Requests[0].Body))
	assert.Len(t, out.Requests[0].Events, 2)
	assert.Empty(t, out.Requests[1].Events)
	assert.Equal(t, `"AACAPw=="`, string(out.Requests[1].Body))
	assert.False(t, out.Requests[1].Passed)
}

func TestJSONFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(JSONWithWriter(&buf)).Flush())
	assert.Contains(t, buf.String(), `"requests": []`)
}
