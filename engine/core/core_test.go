package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifiersReuseReleased(t *testing.T) {
	ids := NewIdentifiers()
	a := ids.Acquire("a")
	b := ids.Acquire("b")
	c := ids.Acquire("c")
	assert.Equal(t, []uint32{0, 1, 2}, []uint32{a, b, c})

	require.NoError(t, ids.Release(b))
	assert.Nil(t, ids.Owner(b))
	assert.Error(t, ids.Release(b))
	assert.Error(t, ids.Release(42))

	assert.Equal(t, b, ids.Acquire("d"))
	assert.Equal(t, "d", ids.Owner(b))
}

func TestMetricsAverage(t *testing.T) {
	require.NoError(t, MetricsInitialize())
	for i := 0; i < AVG_COUNT+5; i++ {
		MetricsUpdate(0.010)
	}
	assert.InDelta(t, 10.0, MetricsFrameTime(), 0.0001)
	assert.GreaterOrEqual(t, MetricsTotalFrames(), uint64(AVG_COUNT+5))
}

func TestEventsPostAndDispatch(t *testing.T) {
	require.True(t, EventInitialize())
	defer EventShutdown()

	var got []uint32
	listener := &struct{}{}
	require.True(t, EventRegister(EVENT_CODE_RESIZED, listener, func(code SystemEventCode, sender, l interface{}, data EventContext) bool {
		got = append(got, data.Data.U32[0], data.Data.U32[1])
		return true
	}))
	assert.False(t, EventRegister(EVENT_CODE_RESIZED, listener, nil))

	ctx := EventContext{}
	ctx.Data.U32[0] = 1024
	ctx.Data.U32[1] = 768
	require.NoError(t, EventPost(EVENT_CODE_RESIZED, nil, ctx))
	assert.Empty(t, got)

	assert.Equal(t, 1, EventDispatch())
	assert.Equal(t, []uint32{1024, 768}, got)

	assert.True(t, EventUnregister(EVENT_CODE_RESIZED, listener))
	assert.False(t, EventFire(EVENT_CODE_RESIZED, nil, ctx))
}

func TestInputPostsKeyTransitions(t *testing.T) {
	require.True(t, EventInitialize())
	defer EventShutdown()
	require.NoError(t, InputInitialize())
	defer InputShutdown()

	var pressed, released []KeyCode
	listener := &struct{ name string }{"keys"}
	record := func(code SystemEventCode, sender, l interface{}, data EventContext) bool {
		key := KeyCode(data.Data.U16[0])
		if code == EVENT_CODE_KEY_PRESSED {
			pressed = append(pressed, key)
		} else {
			released = append(released, key)
		}
		return false
	}
	EventRegister(EVENT_CODE_KEY_PRESSED, listener, record)
	EventRegister(EVENT_CODE_KEY_RELEASED, listener, record)

	require.NoError(t, InputProcessKey(KEY_V, true))
	// Same state again is not a transition.
	require.NoError(t, InputProcessKey(KEY_V, true))
	assert.True(t, InputIsKeyDown(KEY_V))
	assert.False(t, InputWasKeyDown(KEY_V))

	InputUpdate()
	assert.True(t, InputWasKeyDown(KEY_V))

	require.NoError(t, InputProcessKey(KEY_V, false))
	assert.Equal(t, 2, EventDispatch())
	assert.Equal(t, []KeyCode{KEY_V}, pressed)
	assert.Equal(t, []KeyCode{KEY_V}, released)

	assert.False(t, InputIsKeyDown(KEYS_MAX_KEYS))
}
