package xhr

import "fmt"

// State is the ready state of a Request.
type State int

const (
	Unsent State = iota
	Opened
	HeadersReceived
	Loading
	Done
)

var stateNames = [...]string{
	Unsent:          "UNSENT",
	Opened:          "OPENED",
	HeadersReceived: "HEADERS_RECEIVED",
	Loading:         "LOADING",
	Done:            "DONE",
}

func (s State) String() string {
	if s < Unsent || s > Done {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}
