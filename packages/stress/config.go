package stress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config bounds and paces a run.
type Config struct {
	Count       int           // number of sends, 0 means until Duration elapses
	Duration    time.Duration // wall clock limit, 0 means no limit
	Rate        float64       // sends per second, 0 means as fast as Concurrency allows
	Concurrency int           // sends in flight at once
	Thresholds  Thresholds    // pass/fail thresholds
}

// DefaultConfig returns a single sequential send.
func DefaultConfig() *Config {
	return &Config{
		Count:       1,
		Concurrency: 1,
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	switch {
	case c.Count < 0:
		return fmt.Errorf("count cannot be negative")
	case c.Duration < 0:
		return fmt.Errorf("duration cannot be negative")
	case c.Count == 0 && c.Duration == 0:
		return fmt.Errorf("count or duration is required")
	case c.Rate < 0:
		return fmt.Errorf("rate cannot be negative")
	case c.Concurrency < 1:
		return fmt.Errorf("concurrency must be at least 1")
	}
	return nil
}

// Thresholds defines pass/fail criteria for a run. Zero fields are unset.
type Thresholds struct {
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration
	MaxLatency time.Duration
	ErrorRate  float64 // 0.0 - 1.0
	MinRPS     float64
}

// HasThresholds returns true if any thresholds are configured
func (t *Thresholds) HasThresholds() bool {
	return t.P50 > 0 || t.P95 > 0 || t.P99 > 0 || t.MaxLatency > 0 || t.ErrorRate > 0 || t.MinRPS > 0
}

// ThresholdResult holds the result of evaluating a threshold
type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// latencyThresholds maps metric names to the field they set.
var latencyThresholds = map[string]func(*Thresholds) *time.Duration{
	"p50":        func(t *Thresholds) *time.Duration { return &t.P50 },
	"p95":        func(t *Thresholds) *time.Duration { return &t.P95 },
	"p99":        func(t *Thresholds) *time.Duration { return &t.P99 },
	"max":        func(t *Thresholds) *time.Duration { return &t.MaxLatency },
	"maxlatency": func(t *Thresholds) *time.Duration { return &t.MaxLatency },
}

// ParseThresholds parses a list like "p95<200ms,errors<0.1%,rps>50".
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := parseThreshold(part, &t); err != nil {
			return t, err
		}
	}
	return t, nil
}

func parseThreshold(part string, t *Thresholds) error {
	m := thresholdPattern.FindStringSubmatch(part)
	if m == nil {
		return fmt.Errorf("invalid threshold format: %s", part)
	}
	metric, op, value := strings.ToLower(m[1]), m[2], strings.TrimSpace(m[3])
	upper := op == "<" || op == "<="

	if field, ok := latencyThresholds[metric]; ok {
		if !upper {
			return fmt.Errorf("%s threshold must use < or <=", metric)
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", metric, value)
		}
		*field(t) = d
		return nil
	}

	switch metric {
	case "errors", "error", "errorrate":
		if !upper {
			return fmt.Errorf("error rate threshold must use < or <=")
		}
		f, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil {
			return fmt.Errorf("invalid error rate: %s", value)
		}
		if strings.HasSuffix(value, "%") {
			f /= 100
		}
		t.ErrorRate = f
	case "rps", "rate":
		if upper {
			return fmt.Errorf("RPS threshold must use > or >=")
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid RPS: %s", value)
		}
		t.MinRPS = f
	default:
		return fmt.Errorf("unknown threshold metric: %s", metric)
	}
	return nil
}
