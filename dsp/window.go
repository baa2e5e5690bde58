package dsp

import (
	"fmt"
	"math"
	"strings"

	"github.com/mjibson/go-dsp/window"
)

type WindowType string

const (
	TukeyWindow       WindowType = "tukey"
	HannWindow        WindowType = "hann"
	HammingWindow     WindowType = "hamming"
	BlackmanWindow    WindowType = "blackman"
	BartlettWindow    WindowType = "bartlett"
	FlatTopWindow     WindowType = "flattop"
	RectangularWindow WindowType = "rectangular"
)

// DefaultTukeyAlpha is the ratio of the tapered section of the Tukey window.
const DefaultTukeyAlpha = 0.25

// ParseWindowType returns the window type with the given name.
func ParseWindowType(name string) (WindowType, error) {
	t := WindowType(strings.ToLower(strings.TrimSpace(name)))
	switch t {
	case TukeyWindow, HannWindow, HammingWindow, BlackmanWindow, BartlettWindow, FlatTopWindow, RectangularWindow:
		return t, nil
	case "":
		return TukeyWindow, nil
	default:
		return "", fmt.Errorf("unknown window type %q", name)
	}
}

// Window returns the coefficients of the given window type with length n.
// The Tukey window is generated in its periodic form for spectral analysis,
// the other types come from go-dsp in their symmetric form.
func Window(t WindowType, n int) []float64 {
	if n <= 0 {
		return nil
	}
	switch t {
	case TukeyWindow:
		return PeriodicTukey(n, DefaultTukeyAlpha)
	case HannWindow:
		return window.Hann(n)
	case HammingWindow:
		return window.Hamming(n)
	case BlackmanWindow:
		return window.Blackman(n)
	case BartlettWindow:
		return window.Bartlett(n)
	case FlatTopWindow:
		return window.FlatTop(n)
	default:
		return window.Rectangular(n)
	}
}

// PeriodicTukey returns the periodic Tukey (tapered cosine) window of length n.
func PeriodicTukey(n int, alpha float64) []float64 {
	extended := Tukey(n+1, alpha)
	return extended[:n]
}

// Tukey returns the symmetric Tukey (tapered cosine) window of length n.
// alpha = 0 gives a rectangular window, alpha = 1 a Hann window.
func Tukey(n int, alpha float64) []float64 {
	result := make([]float64, n)
	if n == 1 {
		result[0] = 1
		return result
	}
	if alpha <= 0 {
		for i := range result {
			result[i] = 1
		}
		return result
	}
	if alpha >= 1 {
		alpha = 1
	}

	m := float64(n - 1)
	width := int(math.Floor(alpha * m / 2))
	for i := range result {
		x := float64(i)
		switch {
		case i <= width:
			result[i] = 0.5 * (1 + math.Cos(math.Pi*(-1+2*x/alpha/m)))
		case i >= n-width-1:
			result[i] = 0.5 * (1 + math.Cos(math.Pi*(-2/alpha+1+2*x/alpha/m)))
		default:
			result[i] = 1
		}
	}
	return result
}

// SumOfSquares is used to normalize the spectral density of a windowed segment.
func SumOfSquares(coefficients []float64) float64 {
	var sum float64
	for _, c := range coefficients {
		sum += c * c
	}
	return sum
}
