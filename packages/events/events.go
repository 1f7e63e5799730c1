package events

import "fmt"

// Type identifies a lifecycle event.
type Type int

const (
	ReadyStateChange Type = iota
	LoadStart
	Progress
	Load
	Error
	Abort
	LoadEnd
)

var typeNames = [...]string{
	ReadyStateChange: "readystatechange",
	LoadStart:        "loadstart",
	Progress:         "progress",
	Load:             "load",
	Error:            "error",
	Abort:            "abort",
	LoadEnd:          "loadend",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// Types returns every event type in declaration order.
func Types() []Type {
	types := make([]Type, len(typeNames))
	for i := range typeNames {
		types[i] = Type(i)
	}
	return types
}

// ParseType maps an event name such as "loadend" to its Type.
func ParseType(name string) (Type, error) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", name)
}

// IsTerminal reports whether t is one of abort, error, load.
func (t Type) IsTerminal() bool {
	return t == Abort || t == Error || t == Load
}

// Event is passed to handlers and listeners.
type Event struct {
	Type             Type
	Loaded           int64
	Total            int64
	LengthComputable bool
}

// Listener receives events.
type Listener func(Event)

// ListenerID identifies one AddListener registration.
type ListenerID uint64
