package core

import (
	"sync"

	"github.com/spaghettifunk/anima/engine/containers"
)

type EventContext struct {
	// 128 bytes
	Data struct {
		I64 [2]int64
		U64 [2]uint64
		F64 [2]float64

		I32 [4]int32
		U32 [4]uint32
		F32 [4]float32

		I16 [8]int16
		U16 [8]uint16

		I8 [16]int8
		U8 [16]uint8

		C [16]string
	}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed.
	/* Context usage:
	 * u16 key_code = data.data.u16[0];
	 */
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Keyboard key released.
	/* Context usage:
	 * u16 key_code = data.data.u16[0];
	 */
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * u32 width = data.data.u32[0];
	 * u32 height = data.data.u32[1];
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// A watched asset was written on disk.
	/* Context usage:
	 * string path = data.data.c[0];
	 * u32 resource_type = data.data.u32[0];
	 */
	EVENT_CODE_ASSET_CHANGED SystemEventCode = 0x09

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// This should be more than enough codes...
const MAX_MESSAGE_CODES = 16384

// Maximum number of events posted from other goroutines between two dispatches.
const MAX_QUEUED_EVENTS = 256

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

type queuedEvent struct {
	code    SystemEventCode
	sender  interface{}
	context EventContext
}

// State structure.
type eventSystemState struct {
	mu sync.Mutex
	// Lookup table for event codes.
	registered map[SystemEventCode][]*registeredEvent
	queue      *containers.RingQueue[queuedEvent]
}

var eventState *eventSystemState

func EventInitialize() bool {
	if eventState != nil {
		return false
	}
	eventState = &eventSystemState{
		registered: make(map[SystemEventCode][]*registeredEvent),
		queue:      containers.NewRingQueue[queuedEvent](MAX_QUEUED_EVENTS),
	}
	return true
}

func EventShutdown() error {
	if eventState == nil {
		return nil
	}
	eventState.mu.Lock()
	eventState.registered = nil
	eventState.mu.Unlock()
	eventState = nil
	return nil
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listener/callback combos will not be registered again and will cause this to return false.
 */
func EventRegister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if eventState == nil || code >= MAX_MESSAGE_CODES {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()

	for _, e := range eventState.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	eventState.registered[code] = append(eventState.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

// EventUnregister removes the registration of listener for code.
func EventUnregister(code SystemEventCode, listener interface{}) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()

	events := eventState.registered[code]
	for i, e := range events {
		if e.listener == listener {
			eventState.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code on the calling goroutine. If an event
 * handler returns true, the event is considered handled and is not passed on to any
 * more listeners.
 */
func EventFire(code SystemEventCode, sender interface{}, context EventContext) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.Lock()
	events := append([]*registeredEvent(nil), eventState.registered[code]...)
	eventState.mu.Unlock()

	for _, e := range events {
		if e.callback(code, sender, e.listener, context) {
			return true
		}
	}
	return false
}

// EventPost queues an event from any goroutine. Queued events are delivered by
// EventDispatch on the main loop.
func EventPost(code SystemEventCode, sender interface{}, context EventContext) error {
	if eventState == nil {
		return ErrUnknown
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	return eventState.queue.Enqueue(queuedEvent{code: code, sender: sender, context: context})
}

// EventDispatch fires every queued event and returns how many were delivered.
func EventDispatch() int {
	if eventState == nil {
		return 0
	}
	count := 0
	for {
		eventState.mu.Lock()
		e, err := eventState.queue.Dequeue()
		eventState.mu.Unlock()
		if err != nil {
			return count
		}
		EventFire(e.code, e.sender, e.context)
		count++
	}
}
