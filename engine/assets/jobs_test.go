package assets

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobSystemRejectsBadArguments(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobSystemRunsEveryJob(t *testing.T) {
	js, err := NewJobSystem(4, 2)
	require.NoError(t, err)

	var ran, failed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		require.NoError(t, js.Submit(JobTask{
			OnStart: func() error {
				ran.Add(1)
				if i%5 == 0 {
					return errors.New("boom")
				}
				return nil
			},
			OnComplete: func(err error) {
				if err != nil {
					failed.Add(1)
				}
				wg.Done()
			},
		}))
	}
	wg.Wait()
	assert.Equal(t, int32(20), ran.Load())
	assert.Equal(t, int32(4), failed.Load())

	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())
	assert.ErrorIs(t, js.Submit(JobTask{OnStart: func() error { return nil }}), core.ErrInvalidArgument)
}
