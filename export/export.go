// Package export renders the plot and spectrogram artifacts of the channels into image files.
package export

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/draw"

	"github.com/ftl/tracescope/channel"
	"github.com/ftl/tracescope/spectrogram"
	"github.com/ftl/tracescope/viewport"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 300
)

// PlotArtifact is the renderable state of a channel's signal plot.
type PlotArtifact struct {
	Samples []channel.Sample
	View    viewport.Rect
}

// SpectrogramArtifact is the renderable state of a channel's spectrogram.
type SpectrogramArtifact struct {
	Result *spectrogram.Result
	View   viewport.Rect
}

// ChannelArtifacts are handed to the exporter for every channel. Only included channels
// are written.
type ChannelArtifacts struct {
	Channel     channel.ID
	Included    bool
	Plot        *PlotArtifact
	Spectrogram *SpectrogramArtifact
}

// Files lists the files written for one channel. Empty names indicate a missing artifact.
type Files struct {
	Channel     channel.ID
	Plot        string
	Spectrogram string
}

func PlotFilename(id channel.ID) string {
	return fmt.Sprintf("plot-%d.png", int(id))
}

func SpectrogramFilename(id channel.ID) string {
	return fmt.Sprintf("spec-%d.png", int(id))
}

// ImageExporter writes one PNG image per artifact.
type ImageExporter struct {
	Width  int
	Height int
}

func NewImageExporter(width, height int) *ImageExporter {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &ImageExporter{Width: width, Height: height}
}

// Export writes the artifacts of the given channel into dir.
func (e *ImageExporter) Export(dir string, artifacts ChannelArtifacts) (Files, error) {
	result := Files{Channel: artifacts.Channel}
	if !artifacts.Included {
		return result, nil
	}
	logger := log.WithField("channel", int(artifacts.Channel))

	if artifacts.Plot != nil {
		filename := filepath.Join(dir, PlotFilename(artifacts.Channel))
		err := writeFile(filename, func(w io.Writer) error {
			return RenderPlot(w, artifacts.Channel, artifacts.Plot, e.Width, e.Height)
		})
		if err != nil {
			return Files{}, fmt.Errorf("cannot export plot of %s: %w", artifacts.Channel, err)
		}
		result.Plot = filename
		logger.Debugf("plot written to %s", filename)
	}

	if artifacts.Spectrogram != nil {
		filename := filepath.Join(dir, SpectrogramFilename(artifacts.Channel))
		err := writeFile(filename, func(w io.Writer) error {
			return RenderSpectrogram(w, artifacts.Spectrogram, e.Width, e.Height)
		})
		if err != nil {
			return Files{}, fmt.Errorf("cannot export spectrogram of %s: %w", artifacts.Channel, err)
		}
		result.Spectrogram = filename
		logger.Debugf("spectrogram written to %s", filename)
	}

	return result, nil
}

func writeFile(filename string, render func(io.Writer) error) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	err = render(file)
	closeErr := file.Close()
	if err != nil {
		return err
	}
	return closeErr
}

// ChannelColor returns the pen color of the given channel.
func ChannelColor(id channel.ID) drawing.Color {
	switch id {
	case 0:
		return drawing.Color{R: 255, A: 255}
	case 1:
		return drawing.Color{G: 255, A: 255}
	default:
		return drawing.Color{B: 255, A: 255}
	}
}

// RenderPlot renders the samples of the artifact as a line chart, limited to its view.
func RenderPlot(w io.Writer, id channel.ID, artifact *PlotArtifact, width, height int) error {
	if len(artifact.Samples) == 0 {
		return fmt.Errorf("no samples to plot")
	}

	view := artifact.View
	if view.X.Width() <= 0 || view.Y.Width() <= 0 {
		tMin, tMax, aMin, aMax, _ := channel.Bounds(artifact.Samples)
		view = viewport.Rect{X: viewport.Range{Min: tMin, Max: tMax}, Y: viewport.Range{Min: aMin, Max: aMax}}
	}
	view.X = nonEmptyRange(view.X)
	view.Y = nonEmptyRange(view.Y)

	graph := chart.Chart{
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			Name:  "time",
			Range: &chart.ContinuousRange{Min: view.X.Min, Max: view.X.Max},
		},
		YAxis: chart.YAxis{
			Name:  "amplitude",
			Range: &chart.ContinuousRange{Min: view.Y.Min, Max: view.Y.Max},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    id.String(),
				XValues: channel.Times(artifact.Samples),
				YValues: channel.Amplitudes(artifact.Samples),
				Style: chart.Style{
					StrokeColor: ChannelColor(id),
					StrokeWidth: 1,
				},
			},
		},
	}
	return graph.Render(chart.PNG, w)
}

func nonEmptyRange(r viewport.Range) viewport.Range {
	if r.Width() > 0 {
		return r
	}
	return viewport.Range{Min: r.Min - 0.5, Max: r.Max + 0.5}
}

// RenderSpectrogram renders the visible section of the spectrogram as PNG image.
func RenderSpectrogram(w io.Writer, artifact *SpectrogramArtifact, width, height int) error {
	if artifact.Result == nil || len(artifact.Result.Times) == 0 || len(artifact.Result.Frequencies) == 0 {
		return fmt.Errorf("no spectrogram to render")
	}
	img := SpectrogramImage(artifact.Result, artifact.View, width, height)
	return png.Encode(w, img)
}

// SpectrogramImage maps the magnitude matrix onto the color gradient and scales the visible
// section to the given size. Low frequencies are at the bottom of the image.
func SpectrogramImage(result *spectrogram.Result, view viewport.Rect, width, height int) *image.RGBA {
	raster := Raster(result)
	section := rasterSection(result, view, raster.Bounds())

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(img, img.Bounds(), raster, section, draw.Src, nil)
	return img
}

// Raster returns the matrix with one pixel per cell.
func Raster(result *spectrogram.Result) *image.RGBA {
	columns := len(result.Times)
	rows := len(result.Frequencies)
	levels := result.Levels()

	img := image.NewRGBA(image.Rect(0, 0, columns, rows))
	for i, row := range result.Magnitude {
		for j, value := range row {
			img.SetRGBA(j, rows-1-i, Gradient(levels.Normalize(value)))
		}
	}
	return img
}

func rasterSection(result *spectrogram.Result, view viewport.Rect, bounds image.Rectangle) image.Rectangle {
	extent := result.Extent()
	if view.X.Width() <= 0 || view.Y.Width() <= 0 {
		return bounds
	}
	view = result.Clamp(view)

	toColumn := func(t float64) int {
		return int(math.Round(t / extent.X.Max * float64(bounds.Dx())))
	}
	toRow := func(f float64) int {
		return bounds.Dy() - int(math.Round(f/extent.Y.Max*float64(bounds.Dy())))
	}

	section := image.Rect(toColumn(view.X.Min), toRow(view.Y.Max), toColumn(view.X.Max), toRow(view.Y.Min))
	if section.Dx() < 1 {
		section.Max.X = section.Min.X + 1
	}
	if section.Dy() < 1 {
		section.Max.Y = section.Min.Y + 1
	}
	section = section.Intersect(bounds)
	if section.Empty() {
		return bounds
	}
	return section
}

type gradientStop struct {
	position float64
	color    color.RGBA
}

var gradientStops = []gradientStop{
	{0.0, color.RGBA{R: 75, G: 0, B: 113, A: 255}},
	{0.5, color.RGBA{R: 0, G: 182, B: 188, A: 255}},
	{1.0, color.RGBA{R: 246, G: 111, B: 0, A: 255}},
}

// Gradient maps a normalized level in [0, 1] to a color.
func Gradient(level float64) color.RGBA {
	level = max(0, min(1, level))
	for i := 1; i < len(gradientStops); i++ {
		lower, upper := gradientStops[i-1], gradientStops[i]
		if level > upper.position {
			continue
		}
		ratio := (level - lower.position) / (upper.position - lower.position)
		return color.RGBA{
			R: interpolate(lower.color.R, upper.color.R, ratio),
			G: interpolate(lower.color.G, upper.color.G, ratio),
			B: interpolate(lower.color.B, upper.color.B, ratio),
			A: 255,
		}
	}
	return gradientStops[len(gradientStops)-1].color
}

func interpolate(a, b uint8, ratio float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*ratio))
}
