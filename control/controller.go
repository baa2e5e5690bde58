// Package control orchestrates the channels: it owns the event loop that runs every
// channel operation and every playback tick, one at a time.
package control

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ftl/tracescope/channel"
	"github.com/ftl/tracescope/export"
	"github.com/ftl/tracescope/playback"
	"github.com/ftl/tracescope/scope"
	"github.com/ftl/tracescope/spectrogram"
	"github.com/ftl/tracescope/trace"
	"github.com/ftl/tracescope/viewport"
)

var (
	ErrInvalidChannel = errors.New("invalid channel")
	ErrNoBrowser      = errors.New("no file browser available")
	ErrNotStarted     = errors.New("the controller is not started")
)

// Browser lets the user pick the file for a channel. ok is false if the user cancelled.
type Browser interface {
	Browse(id channel.ID) (path string, ok bool)
}

// Loader reads the raw rows of the given file.
type Loader interface {
	Load(path string) ([][]string, error)
}

type SpectrogramComputer interface {
	Compute(c *channel.Channel) (*spectrogram.Result, error)
}

type ReportBuilder interface {
	Build(artifacts []export.ChannelArtifacts) (string, error)
}

// Indicator is notified about every change of a channel. It is called on the event loop
// and must not call back into the controller synchronously.
type Indicator interface {
	ChannelChanged(snapshot Snapshot)
}

type nullIndicator struct{}

func (nullIndicator) ChannelChanged(Snapshot) {}

// Snapshot is the observable state of one channel.
type Snapshot struct {
	Channel        channel.ID
	State          channel.State
	Path           string
	Cursor         int
	Samples        int
	Running        bool
	Completed      bool
	Visible        bool
	View           viewport.Rect
	Limits         viewport.Rect
	Spectrogram    bool
	SpectrogramErr error
}

func (s Snapshot) String() string {
	visibility := "visible"
	if !s.Visible {
		visibility = "hidden"
	}
	return fmt.Sprintf("%s %s %s %d/%d view %v", s.Channel, visibility, s.State, s.Cursor, s.Samples, s.View)
}

type slot struct {
	path           string
	channel        *channel.Channel
	viewport       *viewport.Viewport
	engine         *playback.Engine
	spectrogram    *spectrogram.Result
	spectrogramErr error
	visible        bool
}

// Controller composes channel, playback, viewport and spectrogram for every channel slot.
type Controller struct {
	slots [channel.Count]*slot

	loader    Loader
	computer  SpectrogramComputer
	reports   ReportBuilder
	browser   Browser
	scope     scope.Scope
	indicator Indicator
	clock     func() time.Time

	scheduler      playback.Scheduler
	ownedScheduler bool
	op             chan func()
	stop           chan struct{}
	stopped        chan struct{}
}

func New(loader Loader, computer SpectrogramComputer, reports ReportBuilder) *Controller {
	result := &Controller{
		loader:    loader,
		computer:  computer,
		reports:   reports,
		scope:     scope.NewNullScope(),
		indicator: nullIndicator{},
		clock:     time.Now,
	}
	for i := range result.slots {
		c := channel.New(channel.ID(i))
		v := viewport.New()
		engine := playback.NewEngine(c, v, schedulerProxy{result})
		engine.SetFrameHandler(result.onFrame)
		result.slots[i] = &slot{
			channel:  c,
			viewport: v,
			engine:   engine,
			visible:  true,
		}
	}
	return result
}

// schedulerProxy resolves the scheduler when a cadence starts.
type schedulerProxy struct {
	controller *Controller
}

func (p schedulerProxy) Every(interval time.Duration, tick func()) playback.Task {
	return p.controller.scheduler.Every(interval, tick)
}

// SetScheduler replaces the event loop scheduler. It must be called before Start.
func (c *Controller) SetScheduler(scheduler playback.Scheduler) {
	c.scheduler = scheduler
	c.ownedScheduler = false
}

func (c *Controller) SetBrowser(browser Browser) {
	c.do(func() {
		c.browser = browser
	})
}

func (c *Controller) SetScope(s scope.Scope) {
	if s == nil {
		s = scope.NewNullScope()
	}
	c.do(func() {
		c.scope = s
	})
}

func (c *Controller) SetIndicator(indicator Indicator) {
	if indicator == nil {
		indicator = nullIndicator{}
	}
	c.do(func() {
		c.indicator = indicator
	})
}

func (c *Controller) SetTracer(tracer trace.Tracer) {
	c.do(func() {
		for _, s := range c.slots {
			s.engine.SetTracer(tracer)
		}
	})
}

// Start the event loop. Without an explicit scheduler, the cadences run on the event loop.
func (c *Controller) Start() {
	if c.op != nil {
		return
	}

	c.stop = make(chan struct{})
	c.stopped = make(chan struct{})
	c.op = make(chan func())
	if c.scheduler == nil || c.ownedScheduler {
		c.scheduler = &loopScheduler{op: c.op, stop: c.stop}
		c.ownedScheduler = true
	}

	go c.run()
}

// Stop pauses every running cadence and stops the event loop.
func (c *Controller) Stop() {
	if c.op == nil {
		return
	}

	c.do(func() {
		for _, s := range c.slots {
			s.engine.Pause()
		}
	})

	close(c.stop)
	<-c.stopped

	c.stop = nil
	c.stopped = nil
	c.op = nil
	if c.ownedScheduler {
		c.scheduler = nil
	}
}

func (c *Controller) run() {
	defer close(c.stopped)

	for {
		select {
		case <-c.stop:
			return
		case op := <-c.op:
			op()
		}
	}
}

// do runs f on the event loop and waits until it is done. If the loop is not started,
// f is called directly.
func (c *Controller) do(f func()) {
	if c.op == nil {
		f()
		return
	}
	done := make(chan struct{})
	c.op <- func() {
		defer close(done)
		f()
	}
	<-done
}

func (c *Controller) slot(id channel.ID) (*slot, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannel, int(id))
	}
	return c.slots[id], nil
}

// onChannel runs f with the slot of the given channel on the event loop and notifies the indicator.
func (c *Controller) onChannel(id channel.ID, f func(*slot) error) error {
	s, err := c.slot(id)
	if err != nil {
		return err
	}
	c.do(func() {
		err = f(s)
		c.indicator.ChannelChanged(c.snapshot(s))
	})
	return err
}

// BrowseAndLoad lets the user pick a file and loads it into the given channel. If the channel
// already holds data, it is cleared first. Cancelling the file selection changes nothing.
func (c *Controller) BrowseAndLoad(id channel.ID) error {
	return c.onChannel(id, c.browseAndLoad)
}

// LoadFile loads the given file into the given channel, bypassing the browser.
func (c *Controller) LoadFile(id channel.ID, path string) error {
	return c.onChannel(id, func(s *slot) error {
		return c.load(s, path)
	})
}

func (c *Controller) browseAndLoad(s *slot) error {
	if c.browser == nil {
		return ErrNoBrowser
	}
	path, ok := c.browser.Browse(s.channel.ID())
	if !ok {
		log.WithField("channel", int(s.channel.ID())).Debug("file selection cancelled")
		return nil
	}
	return c.load(s, path)
}

func (c *Controller) load(s *slot, path string) error {
	logger := log.WithField("channel", int(s.channel.ID()))

	rows, err := c.loader.Load(path)
	if err != nil {
		return err
	}
	samples, err := channel.ParseRows(rows)
	if err != nil {
		return fmt.Errorf("cannot load %s: %w", path, err)
	}

	if s.channel.HasData() {
		c.clear(s)
	}
	s.engine.Replace(samples)
	s.path = path
	s.visible = true
	logger.Debugf("%d samples loaded from %s", len(samples), path)

	c.computeSpectrogram(s)
	return nil
}

func (c *Controller) computeSpectrogram(s *slot) {
	logger := log.WithField("channel", int(s.channel.ID()))

	result, err := c.computer.Compute(s.channel)
	if err != nil {
		logger.Warnf("no spectrogram: %v", err)
		s.spectrogram = nil
		s.spectrogramErr = err
		return
	}
	s.spectrogram = result
	s.spectrogramErr = nil
	logger.Debugf("spectrogram with %d frequency bins and %d time bins", len(result.Frequencies), len(result.Times))

	levels := result.Levels()
	extent := result.Extent()
	now := c.clock()
	for j, t := range result.Times {
		peak, _ := result.Peak(j)
		c.scope.ShowSpectralFrame(&scope.SpectralFrame{
			Frame:         scope.Frame{Stream: scope.StreamID(s.channel.ID().String()), Timestamp: now},
			Time:          t,
			FromFrequency: extent.Y.Min,
			ToFrequency:   extent.Y.Max,
			Values:        result.Column(j),
			FrequencyMarkers: map[scope.MarkerID]float64{
				"peak": peak,
			},
			MagnitudeMarkers: map[scope.MarkerID]float64{
				"min": levels.Min,
				"max": levels.Max,
			},
		})
	}
}

// Play starts or resumes the playback of the given channel. An empty channel is loaded first.
func (c *Controller) Play(id channel.ID) error {
	return c.onChannel(id, func(s *slot) error {
		if c.scheduler == nil {
			return ErrNotStarted
		}
		if !s.channel.HasData() {
			if err := c.browseAndLoad(s); err != nil {
				return err
			}
		}
		if s.engine.Play() {
			log.WithField("channel", int(s.channel.ID())).Debug("playback started")
		}
		return nil
	})
}

// Pause stops the playback of the given channel. An empty channel is loaded first.
func (c *Controller) Pause(id channel.ID) error {
	return c.onChannel(id, func(s *slot) error {
		if !s.channel.HasData() {
			return c.browseAndLoad(s)
		}
		if s.engine.Pause() {
			log.WithField("channel", int(s.channel.ID())).Debug("playback paused")
		}
		return nil
	})
}

// Clear stops the playback and discards the data of the given channel.
func (c *Controller) Clear(id channel.ID) error {
	return c.onChannel(id, func(s *slot) error {
		c.clear(s)
		return nil
	})
}

func (c *Controller) clear(s *slot) {
	s.engine.Clear()
	s.path = ""
	s.spectrogram = nil
	s.spectrogramErr = nil
}

func (c *Controller) ZoomIn(id channel.ID) error {
	return c.onChannel(id, func(s *slot) error {
		s.viewport.ZoomIn()
		return nil
	})
}

func (c *Controller) ZoomOut(id channel.ID) error {
	return c.onChannel(id, func(s *slot) error {
		s.viewport.ZoomOut()
		return nil
	})
}

// Focus fits the view to the revealed data until the next tick.
func (c *Controller) Focus(id channel.ID) error {
	return c.onChannel(id, func(s *slot) error {
		s.viewport.Focus(s.channel.Revealed())
		return nil
	})
}

// Pan moves the view by the given offsets, within the outer limits.
func (c *Controller) Pan(id channel.ID, dx, dy float64) error {
	return c.onChannel(id, func(s *slot) error {
		s.viewport.Pan(dx, dy)
		return nil
	})
}

// ToggleVisibility shows or hides the given channel. Hiding a channel clears it.
// It returns the new visibility.
func (c *Controller) ToggleVisibility(id channel.ID) (bool, error) {
	var visible bool
	err := c.onChannel(id, func(s *slot) error {
		if s.visible {
			c.clear(s)
			s.visible = false
		} else {
			s.visible = true
		}
		visible = s.visible
		return nil
	})
	return visible, err
}

func (c *Controller) Snapshot(id channel.ID) (Snapshot, error) {
	s, err := c.slot(id)
	if err != nil {
		return Snapshot{}, err
	}
	var result Snapshot
	c.do(func() {
		result = c.snapshot(s)
	})
	return result, nil
}

func (c *Controller) Snapshots() []Snapshot {
	result := make([]Snapshot, 0, len(c.slots))
	c.do(func() {
		for _, s := range c.slots {
			result = append(result, c.snapshot(s))
		}
	})
	return result
}

func (c *Controller) snapshot(s *slot) Snapshot {
	return Snapshot{
		Channel:        s.channel.ID(),
		State:          s.channel.State(),
		Path:           s.path,
		Cursor:         s.channel.Cursor(),
		Samples:        s.channel.Len(),
		Running:        s.engine.Running(),
		Completed:      s.engine.Completed(),
		Visible:        s.visible,
		View:           s.viewport.View(),
		Limits:         s.viewport.Limits(),
		Spectrogram:    s.spectrogram != nil,
		SpectrogramErr: s.spectrogramErr,
	}
}

// Spectrogram returns the spectrogram of the given channel, or the error that prevented it.
func (c *Controller) Spectrogram(id channel.ID) (*spectrogram.Result, error) {
	s, err := c.slot(id)
	if err != nil {
		return nil, err
	}
	var result *spectrogram.Result
	c.do(func() {
		result, err = s.spectrogram, s.spectrogramErr
	})
	return result, err
}

// Report exports every channel that holds data. Channels without data are hidden before
// the export. It returns the path of the written report.
func (c *Controller) Report() (string, error) {
	var artifacts []export.ChannelArtifacts
	c.do(func() {
		artifacts = make([]export.ChannelArtifacts, 0, len(c.slots))
		for _, s := range c.slots {
			if !s.channel.HasData() && s.visible {
				s.visible = false
				c.indicator.ChannelChanged(c.snapshot(s))
			}
			artifacts = append(artifacts, c.artifacts(s))
		}
	})

	return c.reports.Build(artifacts)
}

func (c *Controller) artifacts(s *slot) export.ChannelArtifacts {
	result := export.ChannelArtifacts{Channel: s.channel.ID()}
	switch s.channel.State() {
	case channel.Loaded, channel.Playing, channel.Paused:
		result.Included = s.channel.HasData()
	}
	if !result.Included {
		return result
	}

	plot := &export.PlotArtifact{
		Samples: s.channel.Revealed(),
		View:    s.viewport.View(),
	}
	if len(plot.Samples) < 2 {
		plot.Samples = s.channel.Samples()
		plot.View = s.viewport.Limits()
	}
	result.Plot = plot

	if s.spectrogram != nil {
		result.Spectrogram = &export.SpectrogramArtifact{
			Result: s.spectrogram,
			View:   s.spectrogram.Extent(),
		}
	}
	return result
}

func (c *Controller) onFrame(id channel.ID, revealed []channel.Sample, view viewport.Rect) {
	s := c.slots[id]

	visible := make([]channel.Sample, 0, len(revealed))
	for _, sample := range revealed {
		if sample.Time >= view.X.Min && sample.Time <= view.X.Max {
			visible = append(visible, sample)
		}
	}
	c.scope.ShowTimeFrame(&scope.TimeFrame{
		Frame:    scope.Frame{Stream: scope.StreamID(id.String()), Timestamp: c.clock()},
		FromTime: view.X.Min,
		ToTime:   view.X.Max,
		Times:    channel.Times(visible),
		Values:   channel.Amplitudes(visible),
	})

	c.indicator.ChannelChanged(c.snapshot(s))
}
