package transport

import "errors"

var (
	// ErrProtocolNotSupported is returned for URL schemes other than http, https and file.
	ErrProtocolNotSupported = errors.New("protocol not supported")
	// ErrMethodNotSupported is returned for local file requests that are not GET.
	ErrMethodNotSupported = errors.New("only GET is supported for local files")
	// ErrRedirectLoop is returned once a transfer exceeds its redirect budget.
	ErrRedirectLoop = errors.New("too many redirects")
)
