// Package report composes the exported channel artifacts into a timestamped report bundle.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ftl/tracescope/channel"
	"github.com/ftl/tracescope/export"
	"github.com/ftl/tracescope/spectrogram"
)

const (
	// TimestampLayout names the report directories.
	TimestampLayout = "2006-01-02 15-04-05.000000 PM"

	DocumentFilename = "report.html"
	ManifestFilename = "manifest.yaml"

	// maxLinePoints limits the points per line chart in the document, the PNG keeps all samples.
	maxLinePoints = 5000
)

// ErrEmptyReport is returned when no channel holds data. No files are written in this case.
var ErrEmptyReport = errors.New("no channel holds data, plot a signal first")

// Exporter writes the image files of one channel into the given directory.
type Exporter interface {
	Export(dir string, artifacts export.ChannelArtifacts) (export.Files, error)
}

// Builder writes a report bundle into a staging directory and publishes it under a timestamp
// only if every part could be written.
type Builder struct {
	outputDir string
	exporter  Exporter
	now       func() time.Time
}

func NewBuilder(outputDir string, exporter Exporter) *Builder {
	return &Builder{
		outputDir: outputDir,
		exporter:  exporter,
		now:       time.Now,
	}
}

// SetClock replaces the clock that determines the report name.
func (b *Builder) SetClock(now func() time.Time) {
	b.now = now
}

func (b *Builder) OutputDir() string {
	return b.outputDir
}

// Manifest describes the content of a report bundle.
type Manifest struct {
	Created  time.Time       `yaml:"created"`
	Channels []ChannelReport `yaml:"channels"`
}

type ChannelReport struct {
	Channel     int     `yaml:"channel"`
	Samples     int     `yaml:"samples"`
	Plot        string  `yaml:"plot,omitempty"`
	Spectrogram string  `yaml:"spectrogram,omitempty"`
	SampleRate  float64 `yaml:"sample_rate,omitempty"`
	LevelMin    float64 `yaml:"level_min,omitempty"`
	LevelMax    float64 `yaml:"level_max,omitempty"`
}

// Build exports the included channels and composes the report. It returns the path of
// the published report directory. On error nothing is left behind in the output directory.
func (b *Builder) Build(artifacts []export.ChannelArtifacts) (_ string, err error) {
	included := make([]export.ChannelArtifacts, 0, len(artifacts))
	for _, a := range artifacts {
		if a.Included {
			included = append(included, a)
		}
	}
	if len(included) == 0 {
		return "", ErrEmptyReport
	}

	created := b.now()
	err = os.MkdirAll(b.outputDir, 0o755)
	if err != nil {
		return "", fmt.Errorf("cannot create report directory: %w", err)
	}
	staging, err := os.MkdirTemp(b.outputDir, ".staging-")
	if err != nil {
		return "", fmt.Errorf("cannot create staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(staging)
		}
	}()

	manifest := Manifest{Created: created}
	for _, a := range included {
		files, err := b.exporter.Export(staging, a)
		if err != nil {
			return "", fmt.Errorf("report aborted: %w", err)
		}
		manifest.Channels = append(manifest.Channels, channelReport(a, files))
	}

	err = writeFile(filepath.Join(staging, DocumentFilename), func(w io.Writer) error {
		return RenderDocument(w, created, included)
	})
	if err != nil {
		return "", fmt.Errorf("cannot write report document: %w", err)
	}

	err = writeFile(filepath.Join(staging, ManifestFilename), func(w io.Writer) error {
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(manifest)
	})
	if err != nil {
		return "", fmt.Errorf("cannot write report manifest: %w", err)
	}

	target := filepath.Join(b.outputDir, created.Format(TimestampLayout))
	if _, statErr := os.Stat(target); statErr == nil {
		return "", fmt.Errorf("report %s already exists", target)
	}
	err = os.Rename(staging, target)
	if err != nil {
		return "", fmt.Errorf("cannot publish report: %w", err)
	}

	log.Infof("report written to %s", target)
	return target, nil
}

func channelReport(a export.ChannelArtifacts, files export.Files) ChannelReport {
	result := ChannelReport{
		Channel:     int(a.Channel),
		Plot:        baseName(files.Plot),
		Spectrogram: baseName(files.Spectrogram),
	}
	if a.Plot != nil {
		result.Samples = len(a.Plot.Samples)
	}
	if a.Spectrogram != nil && a.Spectrogram.Result != nil {
		levels := a.Spectrogram.Result.Levels()
		result.SampleRate = a.Spectrogram.Result.SampleRate
		result.LevelMin = levels.Min
		result.LevelMax = levels.Max
	}
	return result
}

func baseName(filename string) string {
	if filename == "" {
		return ""
	}
	return filepath.Base(filename)
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

// RenderDocument writes an interactive page with the signal and the spectrogram of every channel.
func RenderDocument(w io.Writer, created time.Time, artifacts []export.ChannelArtifacts) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("tracescope report %s", created.Format(TimestampLayout))

	for _, a := range artifacts {
		if a.Plot != nil {
			page.AddCharts(lineChart(a.Channel, a.Plot))
		}
		if a.Spectrogram != nil && a.Spectrogram.Result != nil {
			page.AddCharts(heatMap(a.Channel, a.Spectrogram.Result))
		}
	}
	return page.Render(w)
}

func lineChart(id channel.ID, artifact *export.PlotArtifact) *charts.Line {
	stride := max(1, len(artifact.Samples)/maxLinePoints)
	data := make([]opts.LineData, 0, len(artifact.Samples)/stride+1)
	for i := 0; i < len(artifact.Samples); i += stride {
		s := artifact.Samples[i]
		data = append(data, opts.LineData{Value: []interface{}{s.Time, s.Amplitude}})
	}

	color := export.ChannelColor(id)
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s signal", id)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "amplitude", Type: "value"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.AddSeries(id.String(), data,
		charts.WithLineStyleOpts(opts.LineStyle{Color: fmt.Sprintf("rgb(%d,%d,%d)", color.R, color.G, color.B), Width: 1}),
	)
	return line
}

func heatMap(id channel.ID, result *spectrogram.Result) *charts.HeatMap {
	times := make([]string, len(result.Times))
	for i, t := range result.Times {
		times[i] = fmt.Sprintf("%.3g", t)
	}
	frequencies := make([]string, len(result.Frequencies))
	for i, f := range result.Frequencies {
		frequencies[i] = fmt.Sprintf("%.4g", f)
	}
	data := make([]opts.HeatMapData, 0, len(times)*len(frequencies))
	for i, row := range result.Magnitude {
		for j, value := range row {
			data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, value}})
		}
	}

	levels := result.Levels()
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s spectrogram", id)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time", Type: "category", Data: times}),
		charts.WithYAxisOpts(opts.YAxis{Name: "frequency", Type: "category", Data: frequencies}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Min: float32(levels.Min),
			Max: float32(levels.Max),
			InRange: &opts.VisualMapInRange{
				Color: []string{"#4b0071", "#00b6bc", "#f66f00"},
			},
		}),
	)
	hm.AddSeries(id.String(), data)
	return hm
}
