// Package xhr implements a browser-style request object.
//
// A Request moves through the ready states UNSENT, OPENED,
// HEADERS_RECEIVED, LOADING and DONE while it fires readystatechange,
// loadstart, progress, load, error, abort and loadend events. Requests are
// bound to an eventloop.Loop: every method must be called from the loop
// goroutine and every event is delivered on it. Events of the DONE
// transition are posted to the end of the current loop turn, so code that
// follows Send always runs before load or loadend listeners.
//
// Asynchronous requests stream the response from a worker goroutine.
// Synchronous requests block the caller in a syncbridge.Bridge until the
// whole response is available.
package xhr
