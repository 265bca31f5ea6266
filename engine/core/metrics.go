package core

import (
	"sync"

	"github.com/spaghettifunk/anima/engine/containers"
)

const AVG_COUNT = 30

type MetricsState struct {
	mu sync.Mutex
	// Last AVG_COUNT frame times in milliseconds.
	frameTimes         *containers.RingQueue[float64]
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
	totalFrames        uint64
}

var onceMetrics sync.Once
var metricsState *MetricsState

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			frameTimes: containers.NewRingQueue[float64](AVG_COUNT),
		}
	})
	return nil
}

// MetricsUpdate records one frame that took frameElapsedTime seconds.
func MetricsUpdate(frameElapsedTime float64) {
	if metricsState == nil {
		return
	}
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()

	frameMS := frameElapsedTime * 1000.0
	metricsState.frameTimes.Push(frameMS)

	sum := 0.0
	metricsState.frameTimes.Each(func(ms float64) { sum += ms })
	metricsState.msAvg = sum / float64(metricsState.frameTimes.Len())

	// Calculate frames per second.
	metricsState.accumulatedFrameMS += frameMS
	metricsState.frames++
	if metricsState.accumulatedFrameMS >= 1000 {
		metricsState.fps = float64(metricsState.frames)
		metricsState.accumulatedFrameMS -= 1000
		metricsState.frames = 0
	}
	metricsState.totalFrames++
}

func MetricsFPS() float64 {
	fps, _ := MetricsFrame()
	return fps
}

func MetricsFrameTime() float64 {
	_, ms := MetricsFrame()
	return ms
}

// MetricsFrame returns the frames per second and the average frame time in milliseconds.
func MetricsFrame() (float64, float64) {
	if metricsState == nil {
		return 0, 0
	}
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	return metricsState.fps, metricsState.msAvg
}

func MetricsTotalFrames() uint64 {
	if metricsState == nil {
		return 0
	}
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	return metricsState.totalFrames
}
