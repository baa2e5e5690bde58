// Package dsp provides the generic DSP building blocks for the spectrogram computation.
package dsp

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer | constraints.Float
}

// FFT transforms real valued segments into one-sided spectra.
type FFT[T Number] struct {
	samples []float64
}

func NewFFT[T Number]() *FFT[T] {
	return &FFT[T]{}
}

// RealToSpectrum transforms the given real samples and writes the projection of the
// one-sided spectrum (bins 0..n/2) into spectrum.
func (f *FFT[T]) RealToSpectrum(spectrum []T, realSamples []T, projection func(complex128, int) T) {
	f.setSamples(realSamples)

	fftResult := fft.FFTReal(f.samples)
	blockSize := len(fftResult)
	binCount := OneSidedBinCount(blockSize)
	if len(spectrum) != binCount {
		panic(fmt.Sprintf("the spectrum slice must have the length of the one-sided FFT result: %d", binCount))
	}

	for i := range binCount {
		spectrum[i] = projection(fftResult[i], blockSize)
	}
}

func (f *FFT[T]) setSamples(realSamples []T) {
	if len(f.samples) != len(realSamples) {
		f.samples = make([]float64, len(realSamples))
	}
	for i, s := range realSamples {
		f.samples[i] = float64(s)
	}
}

// OneSidedBinCount returns the number of non-negative frequency bins of an FFT with the given block size.
func OneSidedBinCount(blockSize int) int {
	return blockSize/2 + 1
}

func PSD[T Number](fftValue complex128, blockSize int) T {
	return T(math.Pow(real(fftValue), 2) + math.Pow(imag(fftValue), 2))
}

func Magnitude[T Number](fftValue complex128, blockSize int) T {
	return T(math.Sqrt(float64(PSD[T](fftValue, blockSize))))
}

// FrequencyMapping maps the bins of a one-sided spectrum to frequencies.
type FrequencyMapping[F Number] struct {
	sampleRate float64
	blockSize  int
	binSize    float64
}

func NewFrequencyMapping[F Number](sampleRate float64, blockSize int) *FrequencyMapping[F] {
	return &FrequencyMapping[F]{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		binSize:    sampleRate / float64(blockSize),
	}
}

func (m *FrequencyMapping[F]) String() string {
	return fmt.Sprintf("[0 - %v]", m.BinToFrequency(OneSidedBinCount(m.blockSize)-1))
}

func (m *FrequencyMapping[F]) BinSize() float64 {
	return m.binSize
}

func (m *FrequencyMapping[F]) BinToFrequency(bin int) F {
	return F(float64(bin) * m.binSize)
}

func (m *FrequencyMapping[F]) FrequencyToBin(frequency F) int {
	bin := int(math.Round(float64(frequency) / m.binSize))
	return max(0, min(bin, OneSidedBinCount(m.blockSize)-1))
}

// Frequencies returns the center frequencies of all one-sided bins.
func (m *FrequencyMapping[F]) Frequencies() []F {
	result := make([]F, OneSidedBinCount(m.blockSize))
	for i := range result {
		result[i] = m.BinToFrequency(i)
	}
	return result
}

// Block represents a block of samples that are processed as one unit.
type Block[T Number] []T

// Sum of all values in this block.
func (b Block[T]) Sum() T {
	var sum T
	for _, v := range b {
		sum += v
	}
	return sum
}

// Mean of all values in this block.
func (b Block[T]) Mean() T {
	if len(b) == 0 {
		return 0
	}
	return b.Sum() / T(len(b))
}

// MinMax returns the minimum and maximum value of this block.
func (b Block[T]) MinMax() (T, T) {
	if len(b) == 0 {
		return 0, 0
	}
	minValue, maxValue := b[0], b[0]
	for _, v := range b[1:] {
		minValue = min(minValue, v)
		maxValue = max(maxValue, v)
	}
	return minValue, maxValue
}

// Detrend subtracts the mean of the block from every value.
func (b Block[T]) Detrend() {
	mean := b.Mean()
	for i := range b {
		b[i] -= mean
	}
}

// Multiply the block element-wise with the given coefficients.
func (b Block[T]) Multiply(coefficients []float64) {
	if len(coefficients) != len(b) {
		panic(fmt.Sprintf("the coefficients must have the same length as the block: %d", len(b)))
	}
	for i := range b {
		b[i] = T(float64(b[i]) * coefficients[i])
	}
}
