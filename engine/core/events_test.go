package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listener struct {
	name    string
	handled bool
	seen    *[]string
}

func (l *listener) onEvent(self any, ctx EventContext) bool {
	*l.seen = append(*l.seen, l.name)
	return l.handled
}

func TestEvents(t *testing.T) {
	require.True(t, EventSystemInitialize())
	defer EventSystemShutdown()
	assert.False(t, EventSystemInitialize(), "already initialized")

	var seen []string
	a := &listener{name: "a", seen: &seen}
	b := &listener{name: "b", seen: &seen, handled: true}
	c := &listener{name: "c", seen: &seen}
	require.True(t, EventRegister(EVENT_CODE_RESIZED, a, a.onEvent))
	require.True(t, EventRegister(EVENT_CODE_RESIZED, b, b.onEvent))
	require.True(t, EventRegister(EVENT_CODE_RESIZED, c, c.onEvent))
	assert.False(t, EventRegister(EVENT_CODE_RESIZED, a, a.onEvent))

	assert.True(t, EventFire(EventContext{Type: EVENT_CODE_RESIZED, Data: &ResizeEvent{Width: 1, Height: 1}}))
	assert.Equal(t, []string{"a", "b"}, seen, "b handled the event")

	assert.True(t, EventUnregister(EVENT_CODE_RESIZED, b))
	assert.False(t, EventUnregister(EVENT_CODE_RESIZED, b))
	seen = nil
	assert.False(t, EventFire(EventContext{Type: EVENT_CODE_RESIZED}))
	assert.Equal(t, []string{"a", "c"}, seen)
	assert.False(t, EventFire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT}))
}

func TestInput(t *testing.T) {
	require.True(t, EventSystemInitialize())
	defer EventSystemShutdown()
	require.NoError(t, InputInitialize())
	defer InputShutdown()

	var keys []KeyCode
	owner := &listener{}
	EventRegister(EVENT_CODE_KEY_PRESSED, owner, func(_ any, ctx EventContext) bool {
		keys = append(keys, ctx.Data.(*KeyEvent).KeyCode)
		return true
	})

	InputProcessKey(KEY_W, true)
	InputProcessKey(KEY_W, true)
	assert.True(t, InputIsKeyDown(KEY_W))
	assert.False(t, InputWasKeyDown(KEY_W))
	assert.Equal(t, []KeyCode{KEY_W}, keys, "repeats fire once")

	InputUpdate()
	assert.True(t, InputWasKeyDown(KEY_W))
	InputProcessKey(KEY_W, false)
	assert.False(t, InputIsKeyDown(KEY_W))

	InputProcessMouseMove(10, 20)
	InputUpdate()
	InputProcessMouseMove(12, 25)
	x, y := InputGetMousePosition()
	px, py := InputGetPreviousMousePosition()
	assert.Equal(t, [4]int32{12, 25, 10, 20}, [4]int32{x, y, px, py})

	InputProcessButton(BUTTON_LEFT, true)
	assert.True(t, InputIsButtonDown(BUTTON_LEFT))
	assert.False(t, InputIsKeyDown(KEYS_MAX_KEYS))
}
