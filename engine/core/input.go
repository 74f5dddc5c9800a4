package core

import "sync"

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// KeyCode follows the virtual key numbering; letters and digits are their
// ASCII upper case code.
type KeyCode uint16

const (
	KEY_BACKSPACE KeyCode = 0x08
	KEY_TAB       KeyCode = 0x09
	KEY_ENTER     KeyCode = 0x0D
	KEY_SHIFT     KeyCode = 0x10
	KEY_CONTROL   KeyCode = 0x11
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_LEFT      KeyCode = 0x25
	KEY_UP        KeyCode = 0x26
	KEY_RIGHT     KeyCode = 0x27
	KEY_DOWN      KeyCode = 0x28
	KEY_0         KeyCode = 0x30
	KEY_A         KeyCode = 0x41
	KEY_D         KeyCode = 0x44
	KEY_E         KeyCode = 0x45
	KEY_Q         KeyCode = 0x51
	KEY_S         KeyCode = 0x53
	KEY_W         KeyCode = 0x57
	KEY_Z         KeyCode = 0x5A
	KEY_F1        KeyCode = 0x70
	KEY_F12       KeyCode = 0x7B

	KEYS_MAX_KEYS KeyCode = 0x100
)

type MouseState struct {
	X       int32
	Y       int32
	Buttons [BUTTON_MAX_BUTTONS]bool
}

type KeyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

// InputState holds the state of the current and of the previous frame.
type InputState struct {
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState
	MouseCurrent     MouseState
	MousePrevious    MouseState
}

var (
	inputMutex sync.RWMutex
	inputState *InputState
)

func InputInitialize() error {
	inputMutex.Lock()
	inputState = &InputState{}
	inputMutex.Unlock()
	LogInfo("Input subsystem initialized.")
	return nil
}

func InputShutdown() error {
	inputMutex.Lock()
	inputState = nil
	inputMutex.Unlock()
	return nil
}

// InputUpdate ends the frame: the current state becomes the previous one.
func InputUpdate() {
	inputMutex.Lock()
	defer inputMutex.Unlock()
	if inputState == nil {
		return
	}
	inputState.KeyboardPrevious = inputState.KeyboardCurrent
	inputState.MousePrevious = inputState.MouseCurrent
}

func readInput(fn func(s *InputState) bool) bool {
	inputMutex.RLock()
	defer inputMutex.RUnlock()
	if inputState == nil {
		return false
	}
	return fn(inputState)
}

func InputIsKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && readInput(func(s *InputState) bool { return s.KeyboardCurrent.Keys[key] })
}

func InputWasKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && readInput(func(s *InputState) bool { return s.KeyboardPrevious.Keys[key] })
}

func InputIsButtonDown(button Button) bool {
	return button < BUTTON_MAX_BUTTONS && readInput(func(s *InputState) bool { return s.MouseCurrent.Buttons[button] })
}

func InputGetMousePosition() (int32, int32) {
	inputMutex.RLock()
	defer inputMutex.RUnlock()
	if inputState == nil {
		return 0, 0
	}
	return inputState.MouseCurrent.X, inputState.MouseCurrent.Y
}

func InputGetPreviousMousePosition() (int32, int32) {
	inputMutex.RLock()
	defer inputMutex.RUnlock()
	if inputState == nil {
		return 0, 0
	}
	return inputState.MousePrevious.X, inputState.MousePrevious.Y
}

// InputProcessKey records a key transition and fires the matching event.
func InputProcessKey(key KeyCode, pressed bool) {
	inputMutex.Lock()
	if inputState == nil || key >= KEYS_MAX_KEYS || inputState.KeyboardCurrent.Keys[key] == pressed {
		inputMutex.Unlock()
		return
	}
	inputState.KeyboardCurrent.Keys[key] = pressed
	inputMutex.Unlock()

	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	EventFire(EventContext{Type: code, Data: &KeyEvent{KeyCode: key}})
}

func InputProcessButton(button Button, pressed bool) {
	inputMutex.Lock()
	if inputState == nil || button >= BUTTON_MAX_BUTTONS || inputState.MouseCurrent.Buttons[button] == pressed {
		inputMutex.Unlock()
		return
	}
	inputState.MouseCurrent.Buttons[button] = pressed
	inputMutex.Unlock()

	code := EVENT_CODE_BUTTON_RELEASED
	if pressed {
		code = EVENT_CODE_BUTTON_PRESSED
	}
	EventFire(EventContext{Type: code, Data: &MouseEvent{Button: button}})
}

func InputProcessMouseMove(x, y int32) {
	inputMutex.Lock()
	if inputState == nil || (inputState.MouseCurrent.X == x && inputState.MouseCurrent.Y == y) {
		inputMutex.Unlock()
		return
	}
	inputState.MouseCurrent.X, inputState.MouseCurrent.Y = x, y
	inputMutex.Unlock()
	EventFire(EventContext{Type: EVENT_CODE_MOUSE_MOVED, Data: &MouseEvent{X: x, Y: y}})
}

func InputProcessMouseWheel(zDelta int8) {
	EventFire(EventContext{Type: EVENT_CODE_MOUSE_WHEEL, Data: &MouseEvent{Scroll: zDelta}})
}
