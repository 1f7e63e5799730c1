package events

type registration struct {
	id ListenerID
	fn Listener
}

// Target holds the handler slot and listener list of every event type.
// The zero value is ready to use. A Target is not safe for concurrent use.
type Target struct {
	handlers  map[Type]Listener
	listeners map[Type][]registration
	nextID    ListenerID
}

// SetHandler assigns the single handler for typ. A nil fn clears it.
func (t *Target) SetHandler(typ Type, fn Listener) {
	if fn == nil {
		delete(t.handlers, typ)
		return
	}
	if t.handlers == nil {
		t.handlers = make(map[Type]Listener)
	}
	t.handlers[typ] = fn
}

// Handler returns the handler assigned to typ, if any.
func (t *Target) Handler(typ Type) Listener {
	return t.handlers[typ]
}

// AddListener appends fn to the listeners of typ. The same function may be
// added more than once and is then called once per registration.
func (t *Target) AddListener(typ Type, fn Listener) ListenerID {
	if t.listeners == nil {
		t.listeners = make(map[Type][]registration)
	}
	t.nextID++
	t.listeners[typ] = append(t.listeners[typ], registration{id: t.nextID, fn: fn})
	return t.nextID
}

// RemoveListener drops the registration id from typ.
func (t *Target) RemoveListener(typ Type, id ListenerID) bool {
	regs := t.listeners[typ]
	for i, r := range regs {
		if r.id == id {
			// copy so a snapshot taken by Invocations stays intact
			next := make([]registration, 0, len(regs)-1)
			next = append(next, regs[:i]...)
			next = append(next, regs[i+1:]...)
			t.listeners[typ] = next
			return true
		}
	}
	return false
}

// ListenerCount returns the number of listeners registered for typ.
func (t *Target) ListenerCount(typ Type) int {
	return len(t.listeners[typ])
}

// Invocations returns one bound call per receiver of ev, handler first and
// then listeners in insertion order. The set of receivers is fixed when
// Invocations is called.
func (t *Target) Invocations(ev Event) []func() {
	regs := t.listeners[ev.Type]
	calls := make([]func(), 0, len(regs)+1)
	if h := t.handlers[ev.Type]; h != nil {
		calls = append(calls, func() { h(ev) })
	}
	for _, r := range regs {
		fn := r.fn
		calls = append(calls, func() { fn(ev) })
	}
	return calls
}

// Dispatch calls every receiver of ev inline.
func (t *Target) Dispatch(ev Event) {
	for _, call := range t.Invocations(ev) {
		call()
	}
}
