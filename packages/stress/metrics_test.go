package stress

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.Start()

	m.Record(100*time.Millisecond, nil)
	m.Record(150*time.Millisecond, nil)
	m.Record(200*time.Millisecond, nil)
	m.Record(50*time.Millisecond, errors.New("boom"))

	m.Stop()

	s := m.GetSummary()
	assert.Equal(t, int64(4), s.TotalRequests)
	assert.Equal(t, int64(3), s.SuccessCount)
	assert.Equal(t, int64(1), s.ErrorCount)
	assert.InDelta(t, 0.75, s.SuccessRate, 1e-9)
	assert.InDelta(t, 0.25, s.ErrorRate, 1e-9)

	const tolerance = float64(time.Millisecond)
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.Min), tolerance)
	assert.InDelta(t, float64(200*time.Millisecond), float64(s.Max), tolerance)
	assert.InDelta(t, float64(125*time.Millisecond), float64(s.Mean), tolerance)
	assert.InDelta(t, float64(100*time.Millisecond), float64(s.P50), tolerance)
}

func TestMetricsRecord_ClampsLatency(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.Record(0, nil)
	m.Record(2*time.Minute, nil)
	m.Stop()

	s := m.GetSummary()
	assert.Equal(t, time.Microsecond, s.Min)
	assert.InDelta(t, float64(time.Minute), float64(s.Max), float64(100*time.Millisecond))
}

func TestMetrics_EmptySummary(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.Stop()

	s := m.GetSummary()
	assert.Zero(t, s.TotalRequests)
	assert.Zero(t, s.ErrorRate)
	assert.Zero(t, s.SuccessRate)
}

func TestSummaryEvaluate(t *testing.T) {
	s := &Summary{
		P50:       20 * time.Millisecond,
		P95:       120 * time.Millisecond,
		P99:       300 * time.Millisecond,
		Max:       400 * time.Millisecond,
		ErrorRate: 0.02,
		RPS:       12.5,
	}

	results := s.Evaluate(Thresholds{
		P95:       100 * time.Millisecond,
		P99:       time.Second,
		ErrorRate: 0.05,
		MinRPS:    10,
	})

	assert.Len(t, results, 4)
	byName := map[string]ThresholdResult{}
	for _, r := range results {
		byName[r.Name] = r
	}

	assert.False(t, byName["p95"].Passed)
	assert.Equal(t, "< 100ms", byName["p95"].Expected)
	assert.Equal(t, "120ms", byName["p95"].Actual)
	assert.True(t, byName["p99"].Passed)
	assert.True(t, byName["error rate"].Passed)
	assert.Equal(t, "2%", byName["error rate"].Actual)
	assert.True(t, byName["min RPS"].Passed)
	assert.Equal(t, "12.50", byName["min RPS"].Actual)
}

func TestSummaryEvaluate_None(t *testing.T) {
	assert.Empty(t, (&Summary{}).Evaluate(Thresholds{}))
}
