package core

import "sync"

// EventCode identifies a kind of event. Applications use codes above
// MAX_EVENT_CODE.
type EventCode uint16

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = iota + 1
	// Data is a KeyEvent.
	EVENT_CODE_KEY_PRESSED
	EVENT_CODE_KEY_RELEASED
	// Data is a MouseEvent with Button set.
	EVENT_CODE_BUTTON_PRESSED
	EVENT_CODE_BUTTON_RELEASED
	// Data is a MouseEvent with X and Y set.
	EVENT_CODE_MOUSE_MOVED
	// Data is a MouseEvent with Scroll set.
	EVENT_CODE_MOUSE_WHEEL
	// Data is a ResizeEvent.
	EVENT_CODE_RESIZED

	MAX_EVENT_CODE EventCode = 0xFF
)

type EventContext struct {
	Type EventCode
	Data any
}

type KeyEvent struct {
	KeyCode KeyCode
}

type MouseEvent struct {
	Button Button
	X      int32
	Y      int32
	Scroll int8
}

type ResizeEvent struct {
	Width  uint32
	Height uint32
}

// FnOnEvent handles one event and returns true when no other listener
// should see it.
type FnOnEvent func(listener any, context EventContext) bool

type registeredEvent struct {
	listener any
	callback FnOnEvent
}

var (
	eventMutex      sync.RWMutex
	eventRegistered map[EventCode][]registeredEvent
)

func EventSystemInitialize() bool {
	eventMutex.Lock()
	defer eventMutex.Unlock()
	if eventRegistered != nil {
		return false
	}
	eventRegistered = make(map[EventCode][]registeredEvent)
	return true
}

// EventSystemShutdown drops every registration.
func EventSystemShutdown() error {
	eventMutex.Lock()
	defer eventMutex.Unlock()
	eventRegistered = nil
	return nil
}

/**
 * @brief Registers onEvent for code. A listener can register once per
 * code; a second registration returns false.
 */
func EventRegister(code EventCode, listener any, onEvent FnOnEvent) bool {
	eventMutex.Lock()
	defer eventMutex.Unlock()
	if eventRegistered == nil {
		return false
	}
	for _, e := range eventRegistered[code] {
		if e.listener == listener {
			LogWarn("Listener already registered for event code %d.", code)
			return false
		}
	}
	eventRegistered[code] = append(eventRegistered[code], registeredEvent{listener: listener, callback: onEvent})
	return true
}

func EventUnregister(code EventCode, listener any) bool {
	eventMutex.Lock()
	defer eventMutex.Unlock()
	events := eventRegistered[code]
	for i, e := range events {
		if e.listener == listener {
			eventRegistered[code] = append(events[:i:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// EventFire runs the listeners of context.Type in registration order until
// one of them handles the event.
func EventFire(context EventContext) bool {
	eventMutex.RLock()
	events := append([]registeredEvent(nil), eventRegistered[context.Type]...)
	eventMutex.RUnlock()
	for _, e := range events {
		if e.callback(e.listener, context) {
			return true
		}
	}
	return false
}
