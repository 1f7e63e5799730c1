// Package stress sends the same request repeatedly and reports latency.
//
// Sends are paced with a token bucket limiter and capped by a concurrency
// semaphore. Latencies go into an HDR histogram so percentiles stay exact
// regardless of how many requests are recorded. A run ends after Count
// sends or when Duration elapses, whichever comes first.
package stress
