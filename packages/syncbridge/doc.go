// Package syncbridge runs a transfer on a worker goroutine and blocks the
// caller until the whole response is available.
//
// In direct mode the worker hands its result back over a channel. In spool
// mode the handshake goes through two files: a sentinel that exists while
// the worker runs and a content file holding the JSON envelope. Run only
// returns once both files are gone.
package syncbridge
