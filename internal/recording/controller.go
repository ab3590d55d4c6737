package recording

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"bolonyay/internal/asr"
)

type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// EventSink receives UI-feedback events. The tick stream (duration and
// synthetic audio level) is a side channel with no ordering obligation
// relative to workflow state.
type EventSink interface {
	RecordingStateChanged(state State)
	RecordingTick(elapsed time.Duration, level float64)
}

type NopSink struct{}

func (NopSink) RecordingStateChanged(State) {}

func (NopSink) RecordingTick(time.Duration, float64) {}

// ResultFunc receives a completed transcription. It is only invoked for
// the epoch the recording was started under; results that outlive a Reset
// are dropped before it is called.
type ResultFunc func(epoch uint64, text string, err error)

// Controller owns the recording lifecycle: duration cap, tick timers and
// delegation to the transcriber. One recording at a time.
type Controller struct {
	transcriber asr.Transcriber
	sink        EventSink
	tick        time.Duration
	maxDuration time.Duration
	onResult    ResultFunc

	mu       sync.Mutex
	state    State
	errMsg   string
	epoch    uint64
	elapsed  time.Duration
	stopTick chan struct{}
}

func NewController(transcriber asr.Transcriber, sink EventSink, tick, maxDuration time.Duration, onResult ResultFunc) *Controller {
	if sink == nil {
		sink = NopSink{}
	}
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	if maxDuration <= 0 {
		maxDuration = 15 * time.Second
	}
	return &Controller{
		transcriber: transcriber,
		sink:        sink,
		tick:        tick,
		maxDuration: maxDuration,
		onResult:    onResult,
		state:       StateIdle,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Start begins a recording from idle, completed or error. Calling it
// while a recording or transcription is in flight is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateRecording || c.state == StateProcessing {
		c.mu.Unlock()
		return nil
	}
	c.epoch++
	epoch := c.epoch

	if err := c.transcriber.Start(ctx); err != nil {
		c.state = StateError
		c.errMsg = err.Error()
		c.mu.Unlock()
		c.sink.RecordingStateChanged(StateError)
		return err
	}

	c.state = StateRecording
	c.errMsg = ""
	c.elapsed = 0
	stop := make(chan struct{})
	c.stopTick = stop
	c.mu.Unlock()

	c.sink.RecordingStateChanged(StateRecording)
	go c.runTicker(ctx, epoch, stop)
	return nil
}

func (c *Controller) runTicker(ctx context.Context, epoch uint64, stop chan struct{}) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.epoch != epoch || c.state != StateRecording {
				c.mu.Unlock()
				return
			}
			c.elapsed += c.tick
			elapsed := c.elapsed
			c.mu.Unlock()

			// The level is synthetic UI feedback, not real amplitude.
			c.sink.RecordingTick(elapsed, rand.Float64())

			if elapsed >= c.maxDuration {
				c.Stop(ctx)
				return
			}
		}
	}
}

// Stop ends an active recording and hands the clip to the transcriber in
// the background. Calling it outside the recording state is a no-op.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return
	}
	epoch := c.epoch
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
	c.state = StateProcessing
	c.mu.Unlock()

	c.sink.RecordingStateChanged(StateProcessing)

	go func() {
		text, err := c.transcriber.StopAndTranscribe(ctx)

		c.mu.Lock()
		if c.epoch != epoch {
			// Reset happened while transcribing; drop the stale result.
			c.mu.Unlock()
			return
		}
		if err != nil {
			c.state = StateError
			c.errMsg = err.Error()
			c.mu.Unlock()
			c.sink.RecordingStateChanged(StateError)
			if c.onResult != nil {
				c.onResult(epoch, "", err)
			}
			return
		}
		c.state = StateCompleted
		c.mu.Unlock()

		c.sink.RecordingStateChanged(StateCompleted)
		if c.onResult != nil {
			c.onResult(epoch, text, nil)
		}
	}()
}

// Reset abandons any recording or in-flight transcription and returns to
// idle. A transcription that completes after Reset is discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.epoch++
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
	c.state = StateIdle
	c.errMsg = ""
	c.elapsed = 0
	c.mu.Unlock()

	c.sink.RecordingStateChanged(StateIdle)
}
