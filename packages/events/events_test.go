package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		parsed, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}

	_, err := ParseType("click")
	assert.Error(t, err)
	assert.Equal(t, "Type(42)", Type(42).String())
}

func TestType_IsTerminal(t *testing.T) {
	assert.True(t, Load.IsTerminal())
	assert.True(t, Error.IsTerminal())
	assert.True(t, Abort.IsTerminal())
	assert.False(t, LoadEnd.IsTerminal())
	assert.False(t, ReadyStateChange.IsTerminal())
}

func TestTarget_HandlerFiresBeforeListeners(t *testing.T) {
	var target Target
	var order []string

	target.AddListener(Load, func(Event) { order = append(order, "first") })
	target.AddListener(Load, func(Event) { order = append(order, "second") })
	target.SetHandler(Load, func(Event) { order = append(order, "handler") })

	target.Dispatch(Event{Type: Load})

	assert.Equal(t, []string{"handler", "first", "second"}, order)
}

func TestTarget_DuplicatesAndRemove(t *testing.T) {
	var target Target
	count := 0
	fn := func(Event) { count++ }

	id1 := target.AddListener(Progress, fn)
	target.AddListener(Progress, fn)
	target.Dispatch(Event{Type: Progress})
	assert.Equal(t, 2, count)

	assert.True(t, target.RemoveListener(Progress, id1))
	assert.False(t, target.RemoveListener(Progress, id1))
	target.Dispatch(Event{Type: Progress})
	assert.Equal(t, 3, count)
	assert.Equal(t, 1, target.ListenerCount(Progress))
}

func TestTarget_SetHandlerNilClears(t *testing.T) {
	var target Target
	called := false
	target.SetHandler(Error, func(Event) { called = true })
	target.SetHandler(Error, nil)

	target.Dispatch(Event{Type: Error})

	assert.False(t, called)
	assert.Nil(t, target.Handler(Error))
}

func TestTarget_InvocationsSnapshot(t *testing.T) {
	var target Target
	var got []Event

	id := target.AddListener(Progress, func(e Event) { got = append(got, e) })
	calls := target.Invocations(Event{Type: Progress, Loaded: 4, Total: 8, LengthComputable: true})
	target.RemoveListener(Progress, id)

	require.Len(t, calls, 1)
	calls[0]()
	require.Len(t, got, 1)
	assert.Equal(t, int64(4), got[0].Loaded)
	assert.True(t, got[0].LengthComputable)
}
