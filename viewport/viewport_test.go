package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ftl/tracescope/channel"
)

func ramp(n int, step float64) []channel.Sample {
	result := make([]channel.Sample, n)
	for i := range result {
		result[i] = channel.Sample{Time: float64(i) * step, Amplitude: float64(i % 5)}
	}
	return result
}

func TestReset(t *testing.T) {
	v := New()
	v.Reset([]channel.Sample{{Time: 0, Amplitude: -2}, {Time: 0.5, Amplitude: 3}, {Time: 1.5, Amplitude: 1}})

	assert.Equal(t, Range{0, WindowWidth}, v.Limits().X)
	assert.Equal(t, Range{-2, 3}, v.Limits().Y)
	assert.False(t, v.Anchored())
}

func TestFollow_SlidingWindow(t *testing.T) {
	samples := ramp(50, 0.1)
	v := New()
	v.Reset(samples)

	v.Follow(nil)
	assert.Equal(t, Range{-1, 0}, v.VisibleWindow())
	assert.Equal(t, 1.0, v.Limits().X.Max)

	v.Follow(samples[:5])
	assert.InDelta(t, -0.6, v.VisibleWindow().Min, 1e-9)
	assert.InDelta(t, 0.4, v.VisibleWindow().Max, 1e-9)
	assert.InDelta(t, 1.0, v.VisibleWindow().Width(), 1e-9)
	assert.Equal(t, 1.0, v.Limits().X.Max)
	assert.True(t, v.Anchored())

	v.Follow(samples[:40])
	assert.InDelta(t, 3.9, v.VisibleWindow().Max, 1e-9)
	assert.InDelta(t, 3.9, v.Limits().X.Max, 1e-9)
}

func TestFollow_LimitNeverShrinks(t *testing.T) {
	samples := ramp(50, 0.1)
	v := New()
	v.Reset(samples)

	v.Follow(samples[:40])
	v.Follow(samples[:20])

	assert.InDelta(t, 3.9, v.Limits().X.Max, 1e-9)
	assert.InDelta(t, 1.9, v.VisibleWindow().Max, 1e-9)
}

func TestZoomInZoomOut(t *testing.T) {
	v := New()
	v.Reset(ramp(10, 0.1))
	v.Follow(ramp(10, 0.1))
	original := v.View()

	v.ZoomIn()
	assert.InDelta(t, original.X.Width()*0.75, v.View().X.Width(), 1e-9)
	assert.InDelta(t, original.X.Center(), v.View().X.Center(), 1e-9)

	v.ZoomOut()
	// 0.75 * 1.25 = 0.9375, so the extent drifts by design of the factors
	assert.InDelta(t, original.X.Width()*0.9375, v.View().X.Width(), 1e-9)
	assert.InDelta(t, original.X.Width(), v.View().X.Width(), 0.1*original.X.Width())
	assert.InDelta(t, original.X.Center(), v.View().X.Center(), 1e-9)
	assert.InDelta(t, original.Y.Center(), v.View().Y.Center(), 1e-9)
}

func TestFocus(t *testing.T) {
	v := New()
	assert.False(t, v.Focus(nil))

	samples := []channel.Sample{{Time: 0.2, Amplitude: 1}, {Time: 0.3, Amplitude: -4}, {Time: 0.4, Amplitude: 2}}
	v.Reset(samples)
	v.Follow(samples)

	assert.True(t, v.Focus(samples))
	assert.Equal(t, Rect{X: Range{0.2, 0.4}, Y: Range{-4, 2}}, v.View())
	assert.False(t, v.Anchored())

	v.Follow(samples)
	assert.True(t, v.Anchored())
	assert.InDelta(t, 1.0, v.VisibleWindow().Width(), 1e-9)
}

func TestPan_ClampedToLimits(t *testing.T) {
	samples := ramp(50, 0.1)
	v := New()
	v.Reset(samples)
	v.Follow(samples)

	v.Pan(10, 0)
	assert.InDelta(t, v.Limits().X.Max, v.View().X.Max, 1e-9)

	v.Pan(-100, 0)
	assert.InDelta(t, v.Limits().X.Min, v.View().X.Min, 1e-9)
	assert.InDelta(t, 1.0, v.View().X.Width(), 1e-9)
}

func TestClear(t *testing.T) {
	v := New()
	v.Reset(ramp(10, 0.1))
	v.Follow(ramp(10, 0.1))

	v.Clear()
	assert.Equal(t, Rect{}, v.View())
	assert.Equal(t, Rect{}, v.Limits())
}
