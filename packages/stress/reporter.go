package stress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Reporter prints run headers and summaries.
type Reporter struct {
	writer  io.Writer
	noColor bool

	green *color.Color
	red   *color.Color
	cyan  *color.Color
	bold  *color.Color
}

// ReporterOption configures the reporter
type ReporterOption func(*Reporter)

// WithWriter sets the output writer
func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

// WithNoColor disables colored output
func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = noColor
	}
}

func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.green = newColor(r.noColor, color.FgGreen)
	r.red = newColor(r.noColor, color.FgRed)
	r.cyan = newColor(r.noColor, color.FgCyan)
	r.bold = newColor(r.noColor, color.Bold)
	return r
}

func newColor(noColor bool, attr color.Attribute) *color.Color {
	c := color.New(attr)
	if noColor {
		c.DisableColor()
	}
	return c
}

// Header prints the target and how the run is bounded.
func (r *Reporter) Header(target string, cfg *Config) {
	fmt.Fprintln(r.writer)
	r.cyan.Fprintf(r.writer, "Repeating: %s\n", target)

	var details []string
	if cfg.Count > 0 {
		details = append(details, fmt.Sprintf("Count: %d", cfg.Count))
	}
	if cfg.Duration > 0 {
		details = append(details, fmt.Sprintf("Duration: %s", formatDuration(cfg.Duration)))
	}
	if cfg.Rate > 0 {
		details = append(details, fmt.Sprintf("Target: %s req/s", formatFloat(cfg.Rate)))
	}
	details = append(details, fmt.Sprintf("Concurrency: %d", cfg.Concurrency))

	fmt.Fprintln(r.writer, strings.Join(details, " | "))
	fmt.Fprintln(r.writer)
}

// Summary prints the final summary and threshold results.
func (r *Reporter) Summary(s *Summary, thresholds []ThresholdResult) {
	r.bold.Fprintln(r.writer, "SUMMARY")
	fmt.Fprintln(r.writer, strings.Repeat("─", 40))

	fmt.Fprintf(r.writer, "Duration:   %s\n", formatDuration(s.Duration))
	fmt.Fprintf(r.writer, "Total:      ")
	r.bold.Fprintf(r.writer, "%s", formatNumber(s.TotalRequests))
	fmt.Fprintf(r.writer, " requests (%.1f req/s)\n", s.RPS)

	fmt.Fprintf(r.writer, "Success:    ")
	r.green.Fprintf(r.writer, "%s", formatNumber(s.SuccessCount))
	fmt.Fprintf(r.writer, " (%.1f%%)\n", s.SuccessRate*100)

	fmt.Fprintf(r.writer, "Failed:     ")
	if s.ErrorCount > 0 {
		r.red.Fprintf(r.writer, "%s", formatNumber(s.ErrorCount))
	} else {
		fmt.Fprintf(r.writer, "%s", formatNumber(s.ErrorCount))
	}
	fmt.Fprintf(r.writer, " (%.1f%%)\n", s.ErrorRate*100)

	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "LATENCY (ms)")
	fmt.Fprintf(r.writer, "  p50: %-6s | p95: %-6s | p99: %-6s | max: %s\n",
		formatLatencyMs(s.P50), formatLatencyMs(s.P95), formatLatencyMs(s.P99), formatLatencyMs(s.Max))
	fmt.Fprintf(r.writer, "  min: %-6s | mean: %-5s | stddev: %s\n",
		formatLatencyMs(s.Min), formatLatencyMs(s.Mean), formatLatencyMs(s.StdDev))

	if len(thresholds) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "THRESHOLDS")
		for _, tr := range thresholds {
			if tr.Passed {
				r.green.Fprintf(r.writer, "  ✓ ")
			} else {
				r.red.Fprintf(r.writer, "  ✗ ")
			}
			fmt.Fprintf(r.writer, "%s %s    (actual: %s)\n", tr.Name, tr.Expected, tr.Actual)
		}
	}

	fmt.Fprintln(r.writer)
}

// JSONSummary writes the summary as indented JSON.
func (r *Reporter) JSONSummary(s *Summary, thresholds []ThresholdResult) error {
	output := map[string]any{
		"duration": s.Duration.String(),
		"requests": map[string]any{
			"total":   s.TotalRequests,
			"success": s.SuccessCount,
			"failed":  s.ErrorCount,
		},
		"rates": map[string]any{
			"rps":         s.RPS,
			"successRate": s.SuccessRate,
			"errorRate":   s.ErrorRate,
		},
		"latency": map[string]any{
			"p50":    s.P50.Milliseconds(),
			"p95":    s.P95.Milliseconds(),
			"p99":    s.P99.Milliseconds(),
			"min":    s.Min.Milliseconds(),
			"max":    s.Max.Milliseconds(),
			"mean":   s.Mean.Milliseconds(),
			"stddev": s.StdDev.Milliseconds(),
		},
	}

	if len(thresholds) > 0 {
		out := make([]map[string]any, len(thresholds))
		for i, tr := range thresholds {
			out[i] = map[string]any{
				"name":     tr.Name,
				"passed":   tr.Passed,
				"expected": tr.Expected,
				"actual":   tr.Actual,
			}
		}
		output["thresholds"] = out
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if seconds == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %02ds", minutes, seconds)
}

func formatLatencyMs(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	switch {
	case ms < 1:
		return fmt.Sprintf("%.2f", ms)
	case ms < 10:
		return fmt.Sprintf("%.1f", ms)
	default:
		return fmt.Sprintf("%.0f", ms)
	}
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 1000 {
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
