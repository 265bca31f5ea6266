package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(fmt.Errorf("acquire: %w", ErrSurfaceStale)))
	assert.False(t, IsFatal(fmt.Errorf("layer: %w", ErrValidation)))
	assert.False(t, IsFatal(ErrSwapchainBooting))

	assert.True(t, IsFatal(fmt.Errorf("no gpu: %w", ErrDevice)))
	assert.True(t, IsFatal(fmt.Errorf("staging: %w", ErrAllocation)))
	assert.True(t, IsFatal(fmt.Errorf("vert: %w", ErrShaderLoad)))
	assert.True(t, IsFatal(ErrUnknown))
}

func TestParseLogLevel(t *testing.T) {
	l, err := ParseLogLevel("WARN")
	assert.NoError(t, err)
	assert.Equal(t, LogLevelWarn, l)

	l, err = ParseLogLevel("")
	assert.NoError(t, err)
	assert.Equal(t, LogLevelDebug, l)

	_, err = ParseLogLevel("loud")
	assert.Error(t, err)
}
