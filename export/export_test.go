package export

import (
	"bytes"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/tracescope/channel"
	"github.com/ftl/tracescope/spectrogram"
	"github.com/ftl/tracescope/viewport"
)

func ramp(n int) []channel.Sample {
	result := make([]channel.Sample, n)
	for i := range result {
		t := float64(i) * 0.01
		result[i] = channel.Sample{Time: t, Amplitude: math.Sin(2 * math.Pi * 5 * t)}
	}
	return result
}

func testResult() *spectrogram.Result {
	return &spectrogram.Result{
		SampleRate:  10,
		Frequencies: []float64{0, 5},
		Times:       []float64{1, 2},
		Magnitude: [][]float64{
			{0, 1},
			{2, 4},
		},
	}
}

func TestGradient(t *testing.T) {
	tt := []struct {
		level    float64
		expected color.RGBA
	}{
		{level: 0, expected: color.RGBA{R: 75, G: 0, B: 113, A: 255}},
		{level: -1, expected: color.RGBA{R: 75, G: 0, B: 113, A: 255}},
		{level: 0.5, expected: color.RGBA{R: 0, G: 182, B: 188, A: 255}},
		{level: 1, expected: color.RGBA{R: 246, G: 111, B: 0, A: 255}},
		{level: 0.25, expected: color.RGBA{R: 38, G: 91, B: 151, A: 255}},
	}
	for _, tc := range tt {
		assert.Equal(t, tc.expected, Gradient(tc.level), "level %g", tc.level)
	}
}

func TestRaster(t *testing.T) {
	img := Raster(testResult())

	require.Equal(t, 2, img.Bounds().Dx())
	require.Equal(t, 2, img.Bounds().Dy())
	// lowest frequency in the bottom row
	assert.Equal(t, Gradient(0), img.RGBAAt(0, 1))
	assert.Equal(t, Gradient(0.25), img.RGBAAt(1, 1))
	assert.Equal(t, Gradient(1), img.RGBAAt(1, 0))
}

func TestSpectrogramImage_Size(t *testing.T) {
	img := SpectrogramImage(testResult(), viewport.Rect{}, 40, 20)

	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())
	assert.Equal(t, Gradient(1), img.RGBAAt(39, 0))
}

func TestRenderPlot(t *testing.T) {
	var buf bytes.Buffer
	artifact := &PlotArtifact{
		Samples: ramp(50),
		View:    viewport.Rect{X: viewport.Range{Min: 0, Max: 1}, Y: viewport.Range{Min: -1, Max: 1}},
	}

	err := RenderPlot(&buf, 0, artifact, 320, 200)

	require.NoError(t, err)
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
}

func TestRenderPlot_NoSamples(t *testing.T) {
	var buf bytes.Buffer
	err := RenderPlot(&buf, 0, &PlotArtifact{}, 320, 200)
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	exporter := NewImageExporter(0, 0)

	files, err := exporter.Export(dir, ChannelArtifacts{
		Channel:     2,
		Included:    true,
		Plot:        &PlotArtifact{Samples: ramp(30)},
		Spectrogram: &SpectrogramArtifact{Result: testResult()},
	})

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "plot-2.png"), files.Plot)
	assert.Equal(t, filepath.Join(dir, "spec-2.png"), files.Spectrogram)
	assert.FileExists(t, files.Plot)
	assert.FileExists(t, files.Spectrogram)
}

func TestExport_NotIncluded(t *testing.T) {
	dir := t.TempDir()

	files, err := NewImageExporter(0, 0).Export(dir, ChannelArtifacts{Channel: 1, Plot: &PlotArtifact{Samples: ramp(30)}})

	require.NoError(t, err)
	assert.Equal(t, Files{Channel: 1}, files)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExport_FailsOnMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")

	_, err := NewImageExporter(0, 0).Export(dir, ChannelArtifacts{Channel: 0, Included: true, Plot: &PlotArtifact{Samples: ramp(30)}})

	assert.Error(t, err)
}
