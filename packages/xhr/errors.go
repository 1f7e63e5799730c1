package xhr

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/xmlhttp/packages/transport"
)

var (
	// ErrSecurity is returned by Open for a forbidden method.
	ErrSecurity = errors.New("request method not allowed")
	// ErrInvalidState is returned when a call is not valid in the current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrAborted marks a request that ended through Abort or cancellation.
	ErrAborted = errors.New("request aborted")

	ErrProtocolNotSupported = transport.ErrProtocolNotSupported
	ErrMethodNotSupported   = transport.ErrMethodNotSupported
)

// Kind classifies an Error.
type Kind int

const (
	KindPolicy Kind = iota + 1
	KindState
	KindProtocol
	KindTransport
	KindAbort
)

func (k Kind) String() string {
	switch k {
	case KindPolicy:
		return "policy"
	case KindState:
		return "state"
	case KindProtocol:
		return "protocol"
	case KindTransport:
		return "transport"
	case KindAbort:
		return "abort"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned by Request methods and by Err after a failed transfer.
type Error struct {
	Kind Kind
	// Op is the Request method that failed, e.g. "open" or "send".
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or zero when err is not an *Error.
func KindOf(err error) Kind {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Kind
	}
	return 0
}

func stateError(op, msg string) error {
	return &Error{Kind: KindState, Op: op, Err: fmt.Errorf("%w: %s", ErrInvalidState, msg)}
}
