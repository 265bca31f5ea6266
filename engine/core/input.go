package core

import "sync"

// Key code definitions. Only the keys the engine and testbed react to are
// tracked; the platform layer drops everything else.
type KeyCode uint16

const (
	KEY_SPACE  KeyCode = 0x20
	KEY_ESCAPE KeyCode = 0x1B
	KEY_LEFT   KeyCode = 0x25
	KEY_UP     KeyCode = 0x26
	KEY_RIGHT  KeyCode = 0x27
	KEY_DOWN   KeyCode = 0x28
	KEY_C      KeyCode = 0x43
	KEY_T      KeyCode = 0x54
	KEY_V      KeyCode = 0x56

	KEYS_MAX_KEYS KeyCode = 0xFF
)

type KeyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

type InputState struct {
	mu               sync.Mutex
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState
}

var inputState *InputState

func InputInitialize() error {
	inputState = &InputState{}
	LogInfo("Input subsystem initialized.")
	return nil
}

func InputShutdown() error {
	inputState = nil
	return nil
}

// InputUpdate copies the current state into the previous one. Call once at
// the end of each frame.
func InputUpdate() {
	if inputState == nil {
		return
	}
	inputState.mu.Lock()
	defer inputState.mu.Unlock()
	inputState.KeyboardPrevious = inputState.KeyboardCurrent
}

func InputIsKeyDown(key KeyCode) bool {
	if inputState == nil || key >= KEYS_MAX_KEYS {
		return false
	}
	inputState.mu.Lock()
	defer inputState.mu.Unlock()
	return inputState.KeyboardCurrent.Keys[key]
}

func InputWasKeyDown(key KeyCode) bool {
	if inputState == nil || key >= KEYS_MAX_KEYS {
		return false
	}
	inputState.mu.Lock()
	defer inputState.mu.Unlock()
	return inputState.KeyboardPrevious.Keys[key]
}

// InputProcessKey records a key transition and posts KEY_PRESSED or
// KEY_RELEASED with the key code in U16[0]. Repeats are ignored.
func InputProcessKey(key KeyCode, pressed bool) error {
	if inputState == nil || key >= KEYS_MAX_KEYS {
		return nil
	}
	inputState.mu.Lock()
	changed := inputState.KeyboardCurrent.Keys[key] != pressed
	inputState.KeyboardCurrent.Keys[key] = pressed
	inputState.mu.Unlock()
	if !changed {
		return nil
	}

	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	ctx := EventContext{}
	ctx.Data.U16[0] = uint16(key)
	return EventPost(code, nil, ctx)
}
