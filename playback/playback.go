// Package playback replays a recorded trace as a simulated live stream by revealing
// a growing prefix of the samples on a fixed cadence.
package playback

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ftl/tracescope/channel"
	"github.com/ftl/tracescope/trace"
	"github.com/ftl/tracescope/viewport"
)

const (
	// RevealStep is the number of samples revealed with every tick.
	RevealStep = 20
	// TickInterval is the cadence of the reveal ticks.
	TickInterval = 150 * time.Millisecond
)

// FrameHandler receives the revealed prefix and the resulting view after every tick.
type FrameHandler func(id channel.ID, revealed []channel.Sample, view viewport.Rect)

// Engine drives the playback state machine of one channel:
//
//	Empty --load--> Loaded --play--> Playing <--pause/play--> Paused
//	any --clear--> Empty
//
// When the cursor reaches the end of the samples, the cadence stops and the
// channel stays Playing. Further play calls are no-ops until the channel is cleared.
type Engine struct {
	channel   *channel.Channel
	viewport  *viewport.Viewport
	scheduler Scheduler
	task      Task

	onFrame FrameHandler
	tracer  trace.Tracer
}

func NewEngine(c *channel.Channel, v *viewport.Viewport, scheduler Scheduler) *Engine {
	return &Engine{
		channel:   c,
		viewport:  v,
		scheduler: scheduler,
		tracer:    new(trace.NoTracer),
	}
}

func (e *Engine) SetFrameHandler(handler FrameHandler) {
	e.onFrame = handler
}

func (e *Engine) SetTracer(tracer trace.Tracer) {
	if tracer == nil {
		tracer = new(trace.NoTracer)
	}
	e.tracer = tracer
}

// Load stores the given rows in the channel and resets the viewport. A running
// cadence is stopped before the samples are replaced. On error nothing changes.
func (e *Engine) Load(rows [][]string) error {
	samples, err := channel.ParseRows(rows)
	if err != nil {
		return err
	}

	e.Replace(samples)
	return nil
}

// Replace stops a running cadence and sets the given samples as new content of the channel.
func (e *Engine) Replace(samples []channel.Sample) {
	e.stopCadence()
	e.channel.Replace(samples)
	e.viewport.Reset(samples)
}

// Play starts or resumes the cadence. It returns true if the cadence was started.
func (e *Engine) Play() bool {
	switch e.channel.State() {
	case channel.Empty:
		return false
	case channel.Playing:
		return false
	}

	e.channel.SetState(channel.Playing)
	if e.channel.Cursor() >= e.channel.Len() {
		return false
	}
	e.startCadence()
	return true
}

// Pause stops the cadence if it is running. It returns true if the cadence was stopped.
func (e *Engine) Pause() bool {
	if !e.Running() {
		return false
	}
	e.stopCadence()
	e.channel.SetState(channel.Paused)
	return true
}

// Clear stops the cadence before the channel and the viewport are reset, so no tick
// can observe a half-cleared channel.
func (e *Engine) Clear() {
	e.stopCadence()
	e.channel.Clear()
	e.viewport.Clear()
}

// Running indicates if the cadence is active.
func (e *Engine) Running() bool {
	return e.task != nil
}

// Completed indicates that all samples are revealed and the cadence stopped.
func (e *Engine) Completed() bool {
	return e.channel.State() == channel.Playing && !e.Running() && e.channel.Cursor() >= e.channel.Len()
}

func (e *Engine) Channel() *channel.Channel {
	return e.channel
}

func (e *Engine) Viewport() *viewport.Viewport {
	return e.viewport
}

func (e *Engine) startCadence() {
	if e.task != nil {
		return
	}
	var task Task
	task = e.scheduler.Every(TickInterval, func() {
		if e.task != task {
			// a tick of a cancelled cadence, the channel may already be cleared
			return
		}
		e.tick()
	})
	e.task = task
	e.tracer.Start()
}

func (e *Engine) stopCadence() {
	if e.task == nil {
		return
	}
	e.task.Stop()
	e.task = nil
}

func (e *Engine) tick() {
	if e.channel.State() != channel.Playing {
		return
	}

	cursor := e.channel.Advance(RevealStep)
	revealed := e.channel.Revealed()
	e.viewport.Follow(revealed)

	e.tracer.Trace(trace.Playback, "%s;%d;%d;%g;%g\n", e.channel.ID(), cursor, e.channel.Len(), e.viewport.VisibleWindow().Min, e.viewport.VisibleWindow().Max)

	if cursor >= e.channel.Len() {
		e.stopCadence()
		log.WithField("channel", int(e.channel.ID())).Debugf("all %d samples revealed", e.channel.Len())
	}

	if e.onFrame != nil {
		e.onFrame(e.channel.ID(), revealed, e.viewport.View())
	}
}
