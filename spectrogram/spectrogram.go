// Package spectrogram computes the time-frequency decomposition of a channel's trace.
package spectrogram

import (
	"fmt"
	"math"

	"github.com/ftl/tracescope/channel"
	"github.com/ftl/tracescope/dsp"
	"github.com/ftl/tracescope/trace"
	"github.com/ftl/tracescope/viewport"
)

type Scaling string

const (
	// DensityScaling produces the power spectral density of every segment.
	DensityScaling Scaling = "density"
	// MagnitudeScaling produces the window normalized magnitude of every segment.
	MagnitudeScaling Scaling = "magnitude"
)

const (
	DefaultSegmentLength = 256
	// DefaultOverlap selects an overlap of SegmentLength/8.
	DefaultOverlap = -1
)

type Options struct {
	SegmentLength int
	Overlap       int
	Window        dsp.WindowType
	Scaling       Scaling
}

func DefaultOptions() Options {
	return Options{
		SegmentLength: DefaultSegmentLength,
		Overlap:       DefaultOverlap,
		Window:        dsp.TukeyWindow,
		Scaling:       DensityScaling,
	}
}

// DegenerateSignalError indicates that no sampling rate can be derived from the trace.
type DegenerateSignalError struct {
	Samples  int
	Interval float64
}

func (e *DegenerateSignalError) Error() string {
	if e.Samples < 2 {
		return fmt.Sprintf("degenerate signal: %d samples, at least 2 are required", e.Samples)
	}
	return fmt.Sprintf("degenerate signal: invalid sampling interval %g", e.Interval)
}

// SampleRate estimates the sampling rate from the first sampling interval. The trace
// is assumed to be sampled uniformly.
func SampleRate(samples []channel.Sample) (float64, error) {
	if len(samples) < 2 {
		return 0, &DegenerateSignalError{Samples: len(samples)}
	}
	interval := samples[1].Time - samples[0].Time
	if !(interval > 0) || math.IsInf(interval, 0) {
		return 0, &DegenerateSignalError{Samples: len(samples), Interval: interval}
	}
	return 1 / interval, nil
}

// Result holds the magnitude matrix indexed by [frequency bin][time bin].
type Result struct {
	SampleRate  float64
	Frequencies []float64
	Times       []float64
	Magnitude   [][]float64
}

// Levels is the value range used to map the matrix onto a color gradient.
type Levels struct {
	Min float64
	Max float64
}

// Normalize maps the given value linearly into [0, 1].
func (l Levels) Normalize(value float64) float64 {
	width := l.Max - l.Min
	if width <= 0 {
		return 0
	}
	return max(0, min(1, (value-l.Min)/width))
}

// Levels returns the observed minimum and maximum of the matrix.
func (r *Result) Levels() Levels {
	first := true
	var result Levels
	for _, row := range r.Magnitude {
		for _, v := range row {
			if first {
				result = Levels{Min: v, Max: v}
				first = false
				continue
			}
			result.Min = min(result.Min, v)
			result.Max = max(result.Max, v)
		}
	}
	return result
}

// Extent returns the rectangle in data coordinates that the matrix is mapped onto:
// time in [0, last time bin] and frequency in [0, last frequency bin].
func (r *Result) Extent() viewport.Rect {
	var result viewport.Rect
	if len(r.Times) > 0 {
		result.X.Max = r.Times[len(r.Times)-1]
	}
	if len(r.Frequencies) > 0 {
		result.Y.Max = r.Frequencies[len(r.Frequencies)-1]
	}
	return result
}

// CellSize returns the size of one matrix cell in data coordinates.
func (r *Result) CellSize() (width, height float64) {
	extent := r.Extent()
	if len(r.Times) > 0 {
		width = extent.X.Width() / float64(len(r.Times))
	}
	if len(r.Frequencies) > 0 {
		height = extent.Y.Width() / float64(len(r.Frequencies))
	}
	return width, height
}

// Clamp limits the given view of the spectrogram to its extent.
func (r *Result) Clamp(view viewport.Rect) viewport.Rect {
	return view.Clamp(r.Extent())
}

// Column returns the magnitudes of all frequency bins at the given time bin.
func (r *Result) Column(timeBin int) []float64 {
	result := make([]float64, len(r.Frequencies))
	for i, row := range r.Magnitude {
		result[i] = row[timeBin]
	}
	return result
}

// Peak returns the frequency and the magnitude of the strongest bin at the given time bin.
func (r *Result) Peak(timeBin int) (frequency float64, magnitude float64) {
	peak := -1
	for i, row := range r.Magnitude {
		if peak == -1 || row[timeBin] > magnitude {
			peak = i
			magnitude = row[timeBin]
		}
	}
	if peak == -1 {
		return 0, 0
	}
	return r.Frequencies[peak], magnitude
}

// Compute runs a short-time Fourier transform over the amplitudes of the given samples.
func Compute(samples []channel.Sample, options Options) (*Result, error) {
	sampleRate, err := SampleRate(samples)
	if err != nil {
		return nil, err
	}

	n := len(samples)
	segmentLength := options.SegmentLength
	if segmentLength <= 0 {
		segmentLength = DefaultSegmentLength
	}
	segmentLength = min(segmentLength, n)

	overlap := options.Overlap
	if overlap < 0 {
		overlap = segmentLength / 8
	}
	overlap = min(overlap, segmentLength-1)
	step := segmentLength - overlap

	coefficients := dsp.Window(options.Window, segmentLength)
	scale := 1.0
	switch options.Scaling {
	case MagnitudeScaling:
		var sum float64
		for _, c := range coefficients {
			sum += c
		}
		if sum != 0 {
			scale = 1 / sum
		}
	default:
		sumOfSquares := dsp.SumOfSquares(coefficients)
		if sumOfSquares != 0 {
			scale = 1 / (sampleRate * sumOfSquares)
		}
	}

	amplitudes := channel.Amplitudes(samples)
	mapping := dsp.NewFrequencyMapping[float64](sampleRate, segmentLength)
	binCount := dsp.OneSidedBinCount(segmentLength)
	segmentCount := (n-segmentLength)/step + 1

	result := &Result{
		SampleRate:  sampleRate,
		Frequencies: mapping.Frequencies(),
		Times:       make([]float64, segmentCount),
		Magnitude:   make([][]float64, binCount),
	}
	for i := range result.Magnitude {
		result.Magnitude[i] = make([]float64, segmentCount)
	}

	fft := dsp.NewFFT[float64]()
	segment := make(dsp.Block[float64], segmentLength)
	spectrum := make([]float64, binCount)
	for j := range segmentCount {
		start := j * step
		copy(segment, amplitudes[start:start+segmentLength])
		segment.Detrend()
		segment.Multiply(coefficients)

		switch options.Scaling {
		case MagnitudeScaling:
			fft.RealToSpectrum(spectrum, segment, dsp.Magnitude[float64])
		default:
			fft.RealToSpectrum(spectrum, segment, dsp.PSD[float64])
		}

		for i, v := range spectrum {
			v *= scale
			if options.Scaling != MagnitudeScaling && oneSidedDoubled(i, segmentLength) {
				v *= 2
			}
			result.Magnitude[i][j] = v
		}
		result.Times[j] = (float64(start) + float64(segmentLength)/2) / sampleRate
	}

	return result, nil
}

// oneSidedDoubled indicates if the power of the given bin must be doubled to account for
// the negative frequencies. DC and, for even block sizes, the Nyquist bin exist only once.
func oneSidedDoubled(bin int, blockSize int) bool {
	if bin == 0 {
		return false
	}
	if blockSize%2 == 0 && bin == blockSize/2 {
		return false
	}
	return true
}

// Computer computes the spectrogram of a channel with a fixed set of options.
type Computer struct {
	options Options
	tracer  trace.Tracer
}

func NewComputer(options Options) *Computer {
	return &Computer{
		options: options,
		tracer:  new(trace.NoTracer),
	}
}

func (c *Computer) SetTracer(tracer trace.Tracer) {
	if tracer == nil {
		tracer = new(trace.NoTracer)
	}
	c.tracer = tracer
}

func (c *Computer) Options() Options {
	return c.options
}

// Compute the spectrogram of the full sample sequence of the given channel.
func (c *Computer) Compute(ch *channel.Channel) (*Result, error) {
	result, err := Compute(ch.Samples(), c.options)
	if err != nil {
		return nil, err
	}

	if c.tracer.Context() == trace.Spectrogram {
		c.tracer.Start()
		c.tracer.Trace(trace.Spectrogram, "meta;%s;fs;%g;bins;%d;segments;%d\n", ch.ID(), result.SampleRate, len(result.Frequencies), len(result.Times))
		for j := range result.Times {
			c.tracer.TraceBlock(trace.Spectrogram, fmt.Sprintf("%s;%g", ch.ID(), result.Times[j]), result.Column(j))
		}
	}
	return result, nil
}
