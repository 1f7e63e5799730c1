package output

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// maxBodyBytes caps how much of a body is printed without -v.
const maxBodyBytes = 4096

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
	quiet   bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
	dim    *color.Color
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}

	paint := func(attr color.Attribute) *color.Color {
		c := color.New(attr)
		if f.noColor {
			c.DisableColor()
		}
		return c
	}
	f.green = paint(color.FgGreen)
	f.red = paint(color.FgRed)
	f.yellow = paint(color.FgYellow)
	f.cyan = paint(color.FgCyan)
	f.bold = paint(color.Bold)
	f.dim = paint(color.Faint)
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

// WithVerbose prints response headers and the full body.
func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// WithQuiet prints only failures.
func WithQuiet(q bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.quiet = q
	}
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	if f.quiet {
		return
	}
	fmt.Fprintf(f.writer, "%s %s\n\n", f.bold.Sprint("xmlhttp"), version)
}

func (f *ConsoleFormatter) FormatEvent(t Trace) {
	if f.quiet {
		return
	}

	name := f.cyan.Sprint(t.Type)
	switch t.Type {
	case "error", "abort":
		name = f.red.Sprint(t.Type)
	case "load":
		name = f.green.Sprint(t.Type)
	}

	fmt.Fprintf(f.writer, "  %s %-18s %s", f.dim.Sprintf("%6.1fms", float64(t.Elapsed.Microseconds())/1000), name, t.State)
	if t.Type == "progress" {
		if t.LengthComputable {
			fmt.Fprintf(f.writer, " %d/%d", t.Loaded, t.Total)
		} else {
			fmt.Fprintf(f.writer, " %d", t.Loaded)
		}
	}
	fmt.Fprintln(f.writer)
}

func (f *ConsoleFormatter) FormatReport(r *Report) {
	failed := !r.Passed()
	if f.quiet && !failed {
		return
	}

	fmt.Fprintln(f.writer)
	fmt.Fprintf(f.writer, "%s %s\n", f.bold.Sprint(r.Method), r.URL)
	if r.ResponseURL != "" && r.ResponseURL != r.URL {
		fmt.Fprintf(f.writer, "%s %s\n", f.dim.Sprint("→"), r.ResponseURL)
	}

	if r.Err != nil {
		fmt.Fprintf(f.writer, "%s %s\n", f.red.Sprint("x"), f.red.Sprintf("(%v)", r.Err))
	}

	status := f.green
	if r.Status == 0 || r.Status >= 400 {
		status = f.red
	} else if r.Status >= 300 {
		status = f.yellow
	}
	fmt.Fprintf(f.writer, "%s %s %s\n", status.Sprintf("%d", r.Status), r.StatusText, f.cyan.Sprintf("(%dms)", r.Duration.Milliseconds()))

	if f.verbose {
		for _, h := range r.Headers {
			fmt.Fprintf(f.writer, "%s: %s\n", f.dim.Sprint(h.Name), h.Value)
		}
	}

	if len(r.Captures) > 0 {
		fmt.Fprintf(f.writer, "Captures:\n")
		names := make([]string, 0, len(r.Captures))
		for name := range r.Captures {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(f.writer, "  %s = %s\n", name, formatValue(r.Captures[name], 100))
		}
	}

	for _, a := range r.Assertions {
		if a.Passed {
			if !f.quiet {
				fmt.Fprintf(f.writer, "  %s %s %s %s\n", f.green.Sprint("✓"), a.Subject, a.Operator, formatValue(a.Expected, 100))
			}
			continue
		}
		fmt.Fprintf(f.writer, "  %s %s %s\n", f.red.Sprint("✗"), a.Subject, a.Operator)
		fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Expected, 100))
		fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, 100))
		if a.Message != "" {
			fmt.Fprintf(f.writer, "      %s\n", a.Message)
		}
	}

	if !f.quiet && len(r.Body) > 0 {
		fmt.Fprintln(f.writer)
		f.writeBody(r)
	}
}

func (f *ConsoleFormatter) writeBody(r *Report) {
	body := r.Body
	truncated := false
	if !f.verbose && len(body) > maxBodyBytes {
		body, truncated = body[:maxBodyBytes], true
	}

	switch {
	case r.ResponseType == "arraybuffer" || r.ResponseType == "blob" || !utf8.Valid(body):
		fmt.Fprint(f.writer, hex.Dump(body))
	case gjson.ValidBytes(body):
		out := pretty.Pretty(body)
		if !f.noColor {
			out = pretty.Color(out, nil)
		}
		fmt.Fprint(f.writer, string(out))
	default:
		fmt.Fprintln(f.writer, string(body))
	}

	if truncated {
		fmt.Fprintln(f.writer, f.dim.Sprintf("... %d more bytes (use -v to show all)", len(r.Body)-maxBodyBytes))
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	fmt.Fprintf(f.writer, "%s %v\n", f.red.Sprint("Error:"), err)
}
