// Package scope provides a live view of the channel playback and the spectrogram
// computation in form of time domain and spectral frames for remote clients.
package scope

import (
	"time"
)

type StreamID string
type MarkerID string

type Frame struct {
	Stream    StreamID
	Timestamp time.Time
}

// TimeFrame carries the revealed samples of a channel and the visible time window.
type TimeFrame struct {
	Frame
	FromTime float64
	ToTime   float64
	Times    []float64
	Values   []float64
}

// SpectralFrame carries one time bin of a spectrogram.
type SpectralFrame struct {
	Frame
	Time             float64
	FromFrequency    float64
	ToFrequency      float64
	Values           []float64
	FrequencyMarkers map[MarkerID]float64
	MagnitudeMarkers map[MarkerID]float64
}

// Scope receives the frames to visualize.
type Scope interface {
	ShowTimeFrame(*TimeFrame)
	ShowSpectralFrame(*SpectralFrame)
}

type NullScope struct{}

func NewNullScope() *NullScope {
	return &NullScope{}
}

func (s *NullScope) ShowTimeFrame(*TimeFrame)         {}
func (s *NullScope) ShowSpectralFrame(*SpectralFrame) {}
