package playback

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/tracescope/channel"
	"github.com/ftl/tracescope/viewport"
)

func rampRows(n int, step float64) [][]string {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("%g", float64(i)*step), fmt.Sprintf("%d", i%7)}
	}
	return rows
}

func setupEngine(t *testing.T, rows [][]string) (*Engine, *ManualScheduler) {
	t.Helper()
	scheduler := new(ManualScheduler)
	engine := NewEngine(channel.New(0), viewport.New(), scheduler)
	if rows != nil {
		require.NoError(t, engine.Load(rows))
	}
	return engine, scheduler
}

func TestPlay_ElevenSamplesRevealedWithOneTick(t *testing.T) {
	rows := [][]string{
		{"0.0", "1.0"}, {"0.1", "2.0"}, {"0.2", "1.5"}, {"0.3", "1.0"}, {"0.4", "0.5"}, {"0.5", "0.0"},
		{"0.6", "0.5"}, {"0.7", "1.0"}, {"0.8", "0.5"}, {"0.9", "0.2"}, {"1.0", "0.0"},
	}
	engine, scheduler := setupEngine(t, rows)
	var frames [][]channel.Sample
	engine.SetFrameHandler(func(_ channel.ID, revealed []channel.Sample, _ viewport.Rect) {
		frames = append(frames, revealed)
	})

	assert.True(t, engine.Play())
	assert.Equal(t, []time.Duration{TickInterval}, scheduler.Intervals())

	assert.Equal(t, 1, scheduler.Fire())

	require.Len(t, frames, 1)
	assert.Len(t, frames[0], 11)
	assert.Equal(t, 11, engine.Channel().Cursor())
	assert.Equal(t, 0, scheduler.Active())
	assert.False(t, engine.Running())
	assert.True(t, engine.Completed())
	assert.Equal(t, channel.Playing, engine.Channel().State())
	assert.Equal(t, viewport.Range{Min: 0, Max: 1.0}, engine.Viewport().VisibleWindow())
}

func TestPlay_CursorIsMonotonicAndBounded(t *testing.T) {
	engine, scheduler := setupEngine(t, rampRows(95, 0.01))
	engine.Play()

	last := 0
	rounds := 0
	for scheduler.Fire() > 0 {
		rounds++
		cursor := engine.Channel().Cursor()
		assert.GreaterOrEqual(t, cursor, last)
		assert.LessOrEqual(t, cursor, engine.Channel().Len())
		last = cursor
	}

	assert.Equal(t, 5, rounds)
	assert.Equal(t, 95, last)
	assert.True(t, engine.Completed())
}

func TestPlayPausePlay_Resumes(t *testing.T) {
	engine, scheduler := setupEngine(t, rampRows(100, 0.1))

	engine.Play()
	scheduler.Fire()
	scheduler.Fire()
	require.Equal(t, 40, engine.Channel().Cursor())

	assert.True(t, engine.Pause())
	assert.Equal(t, channel.Paused, engine.Channel().State())
	assert.Equal(t, 0, scheduler.Fire())
	assert.Equal(t, 40, engine.Channel().Cursor())

	assert.True(t, engine.Play())
	assert.Equal(t, 40, engine.Channel().Cursor())
	scheduler.Fire()
	assert.Equal(t, 60, engine.Channel().Cursor())
}

func TestPlay_NoopWhileRunningOrCompleted(t *testing.T) {
	engine, scheduler := setupEngine(t, rampRows(30, 0.1))

	assert.True(t, engine.Play())
	assert.False(t, engine.Play())
	assert.Equal(t, 1, scheduler.Active())

	scheduler.FireUntilIdle(10)
	require.True(t, engine.Completed())

	assert.False(t, engine.Play())
	assert.Equal(t, 0, scheduler.Active())
	assert.Equal(t, 30, engine.Channel().Cursor())
}

func TestPlay_EmptyChannel(t *testing.T) {
	engine, scheduler := setupEngine(t, nil)

	assert.False(t, engine.Play())
	assert.Equal(t, 0, scheduler.Active())
	assert.Equal(t, channel.Empty, engine.Channel().State())
}

func TestPause_NoopIfNotRunning(t *testing.T) {
	engine, _ := setupEngine(t, rampRows(30, 0.1))

	assert.False(t, engine.Pause())
	assert.Equal(t, channel.Loaded, engine.Channel().State())
}

func TestClear(t *testing.T) {
	engine, scheduler := setupEngine(t, rampRows(100, 0.1))
	engine.Play()
	scheduler.Fire()

	engine.Clear()

	assert.Equal(t, channel.Empty, engine.Channel().State())
	assert.Equal(t, 0, engine.Channel().Len())
	assert.Equal(t, 0, engine.Channel().Cursor())
	assert.False(t, engine.Running())
	assert.Equal(t, 0, scheduler.Active())
	assert.Equal(t, viewport.Rect{}, engine.Viewport().Limits())

	engine.Clear()
	assert.Equal(t, channel.Empty, engine.Channel().State())
}

func TestStaleTickIsDiscarded(t *testing.T) {
	scheduler := new(ManualScheduler)
	engine := NewEngine(channel.New(1), viewport.New(), scheduler)
	require.NoError(t, engine.Load(rampRows(100, 0.1)))
	engine.Play()

	// keep the tick function of the first cadence, as if it was already in flight
	staleTick := scheduler.tasks[0].tick
	engine.Clear()

	assert.NotPanics(t, staleTick)
	assert.Equal(t, 0, engine.Channel().Cursor())
	assert.Equal(t, channel.Empty, engine.Channel().State())
}

func TestLoad_ParseErrorKeepsState(t *testing.T) {
	engine, scheduler := setupEngine(t, rampRows(50, 0.1))
	engine.Play()
	scheduler.Fire()

	err := engine.Load([][]string{{"1", "x"}})

	assert.Error(t, err)
	assert.True(t, engine.Running())
	assert.Equal(t, 50, engine.Channel().Len())
	assert.Equal(t, 20, engine.Channel().Cursor())
}

func TestLoad_ReplacesRunningPlayback(t *testing.T) {
	engine, scheduler := setupEngine(t, rampRows(50, 0.1))
	engine.Play()
	scheduler.Fire()

	require.NoError(t, engine.Load(rampRows(10, 0.1)))

	assert.False(t, engine.Running())
	assert.Equal(t, channel.Loaded, engine.Channel().State())
	assert.Equal(t, 0, engine.Channel().Cursor())
	assert.Equal(t, 10, engine.Channel().Len())
}

func TestTick_ExpandsLimitAtEndOfData(t *testing.T) {
	engine, scheduler := setupEngine(t, rampRows(40, 0.1))
	engine.Play()

	scheduler.FireUntilIdle(10)

	assert.InDelta(t, 3.9, engine.Viewport().Limits().X.Max, 1e-9)
	assert.InDelta(t, 3.9, engine.Viewport().VisibleWindow().Max, 1e-9)
}
