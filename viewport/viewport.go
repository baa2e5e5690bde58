// Package viewport computes the visible section of a channel's plot from the revealed samples.
package viewport

import (
	"fmt"

	"github.com/ftl/tracescope/channel"
)

const (
	// WindowWidth is the width of the sliding time window in time units.
	WindowWidth = 1.0

	ZoomInFactor  = 0.75
	ZoomOutFactor = 1.25
)

// Range is a closed interval on one axis.
type Range struct {
	Min float64
	Max float64
}

func (r Range) String() string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

func (r Range) Width() float64 {
	return r.Max - r.Min
}

func (r Range) Center() float64 {
	return r.Min + r.Width()/2
}

// Scale the range by the given factor about its center.
func (r Range) Scale(factor float64) Range {
	center := r.Center()
	half := r.Width() * factor / 2
	return Range{Min: center - half, Max: center + half}
}

// Shift the range by delta, but keep it inside the given limits if possible.
// If the range is wider than the limits, it is aligned to the lower limit.
func (r Range) Shift(delta float64, limits Range) Range {
	result := Range{Min: r.Min + delta, Max: r.Max + delta}
	if result.Width() >= limits.Width() {
		return Range{Min: limits.Min, Max: limits.Min + result.Width()}
	}
	if result.Min < limits.Min {
		return Range{Min: limits.Min, Max: limits.Min + result.Width()}
	}
	if result.Max > limits.Max {
		return Range{Min: limits.Max - result.Width(), Max: limits.Max}
	}
	return result
}

// Clamp the range to the given limits.
func (r Range) Clamp(limits Range) Range {
	return Range{Min: max(r.Min, limits.Min), Max: min(r.Max, limits.Max)}
}

// Rect is a rectangle in data coordinates.
type Rect struct {
	X Range
	Y Range
}

func (r Rect) String() string {
	return fmt.Sprintf("x%v y%v", r.X, r.Y)
}

// Scale the rectangle by the given factor about its center.
func (r Rect) Scale(factor float64) Rect {
	return Rect{X: r.X.Scale(factor), Y: r.Y.Scale(factor)}
}

// Clamp the rectangle to the given limits.
func (r Rect) Clamp(limits Rect) Rect {
	return Rect{X: r.X.Clamp(limits.X), Y: r.Y.Clamp(limits.Y)}
}

// Viewport keeps the current view and the outer pan/zoom limits of one channel plot.
// The outer limits never shrink automatically while the channel holds data.
type Viewport struct {
	view     Rect
	limits   Rect
	anchored bool
}

func New() *Viewport {
	return &Viewport{}
}

// Reset prepares the viewport for a newly loaded trace. The time limit starts with
// one window width, the amplitude limit covers the whole trace.
func (v *Viewport) Reset(samples []channel.Sample) {
	_, _, aMin, aMax, _ := channel.Bounds(samples)
	v.limits = Rect{
		X: Range{Min: 0, Max: WindowWidth},
		Y: Range{Min: aMin, Max: aMax},
	}
	v.view = v.limits
	v.anchored = false
}

// Clear resets the viewport to the zero state.
func (v *Viewport) Clear() {
	v.view = Rect{}
	v.limits = Rect{}
	v.anchored = false
}

// Follow anchors the sliding window to the maximum revealed time and expands
// the outer time limit if necessary.
func (v *Viewport) Follow(revealed []channel.Sample) {
	tMax := 0.0
	for i, s := range revealed {
		if i == 0 || s.Time > tMax {
			tMax = s.Time
		}
	}

	if tMax > v.limits.X.Max {
		v.limits.X.Max = tMax
	}
	v.view.X = Range{Min: tMax - WindowWidth, Max: tMax}
	v.anchored = true
}

// ZoomIn scales the current view by 0.75 about its center.
func (v *Viewport) ZoomIn() {
	v.view = v.view.Scale(ZoomInFactor)
}

// ZoomOut scales the current view by 1.25 about its center.
func (v *Viewport) ZoomOut() {
	v.view = v.view.Scale(ZoomOutFactor)
}

// Focus sets the view to exactly bound the revealed data. The next call to Follow
// re-anchors the time axis. Focus returns false if there is nothing revealed.
func (v *Viewport) Focus(revealed []channel.Sample) bool {
	tMin, tMax, aMin, aMax, ok := channel.Bounds(revealed)
	if !ok {
		return false
	}
	v.view = Rect{
		X: Range{Min: tMin, Max: tMax},
		Y: Range{Min: aMin, Max: aMax},
	}
	v.anchored = false
	return true
}

// Pan moves the view by the given deltas, clamped to the outer limits.
func (v *Viewport) Pan(dx, dy float64) {
	v.view.X = v.view.X.Shift(dx, v.limits.X)
	v.view.Y = v.view.Y.Shift(dy, v.limits.Y)
	v.anchored = false
}

// View returns the currently displayed section.
func (v *Viewport) View() Rect {
	return v.view
}

// VisibleWindow returns the currently displayed time span.
func (v *Viewport) VisibleWindow() Range {
	return v.view.X
}

// Limits returns the outer pan/zoom limits.
func (v *Viewport) Limits() Rect {
	return v.limits
}

// Anchored indicates if the view currently follows the sliding window.
func (v *Viewport) Anchored() bool {
	return v.anchored
}
