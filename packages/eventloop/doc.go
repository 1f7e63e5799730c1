// Package eventloop provides the single-goroutine scheduler that request
// objects deliver their callbacks on.
//
// Work started off the loop (network reads, file reads) reserves a slot with
// RegisterCallback and later enqueues exactly one function through it. The
// loop keeps running while any slot is outstanding, so Run returns only once
// every started transfer has reported back. Post appends to the tail of the
// queue and is the "run after the current call stack unwinds" primitive used
// for deferred event delivery.
package eventloop
