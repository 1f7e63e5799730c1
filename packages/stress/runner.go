package stress

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Func performs one send. A non-nil error counts the send as failed.
type Func func(ctx context.Context) error

// Run calls fn until cfg.Count sends have been started or cfg.Duration
// has elapsed, then waits for the sends in flight. Sends already started
// when Duration elapses run to completion with ctx. The summary is
// returned even when ctx is cancelled.
func Run(ctx context.Context, cfg *Config, fn Func) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	schedule := ctx
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		schedule, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	sem := make(chan struct{}, cfg.Concurrency)

	metrics := NewMetrics()
	metrics.Start()

	var wg sync.WaitGroup
	for i := 0; cfg.Count == 0 || i < cfg.Count; i++ {
		if limiter != nil {
			if err := limiter.Wait(schedule); err != nil {
				break
			}
		}
		if !acquire(schedule, sem) {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			err := fn(ctx)
			metrics.Record(time.Since(start), err)
		}()
	}

	wg.Wait()
	metrics.Stop()
	return metrics.GetSummary(), ctx.Err()
}

func acquire(ctx context.Context, sem chan struct{}) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}
