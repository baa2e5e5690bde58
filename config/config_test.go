package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/tracescope/dsp"
	"github.com/ftl/tracescope/spectrogram"
)

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	v, err := New("")
	require.NoError(t, err)

	cfg, err := Load(v)

	require.NoError(t, err)
	assert.False(t, cfg.Debug)
	assert.Empty(t, cfg.Channels)
	assert.Equal(t, "reports", cfg.Report.OutputDir)
	assert.Equal(t, ":35369", cfg.Scope.GRPCAddress)
	assert.Equal(t, ":35370", cfg.Scope.WebsocketAddress)

	options, err := cfg.Spectrogram.Options()
	require.NoError(t, err)
	assert.Equal(t, spectrogram.DefaultOptions(), options)
}

func TestConfigFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "tracescope.yaml")
	content := `
debug: true
channels:
  - a.csv
  - b.csv
spectrogram:
  segment_length: 128
  overlap: 64
  window: hann
  scaling: magnitude
report:
  output_dir: out
scope:
  enabled: true
`
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))
	v, err := New(filename)
	require.NoError(t, err)

	cfg, err := Load(v)

	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"a.csv", "b.csv"}, cfg.Channels)
	assert.Equal(t, "out", cfg.Report.OutputDir)
	assert.Equal(t, 800, cfg.Report.Width)
	assert.True(t, cfg.Scope.Enabled)

	options, err := cfg.Spectrogram.Options()
	require.NoError(t, err)
	assert.Equal(t, spectrogram.Options{SegmentLength: 128, Overlap: 64, Window: dsp.HannWindow, Scaling: spectrogram.MagnitudeScaling}, options)
}

func TestMissingExplicitConfigFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TRACESCOPE_REPORT_OUTPUT_DIR", "env-reports")
	v, err := New("")
	require.NoError(t, err)

	cfg, err := Load(v)

	require.NoError(t, err)
	assert.Equal(t, "env-reports", cfg.Report.OutputDir)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Spectrogram: SpectrogramConfig{SegmentLength: 256, Overlap: -1},
			Report:      ReportConfig{OutputDir: "reports"},
		}
	}
	tt := []struct {
		desc   string
		modify func(*Config)
	}{
		{"too many channels", func(c *Config) { c.Channels = []string{"a", "b", "c", "d"} }},
		{"unknown window", func(c *Config) { c.Spectrogram.Window = "kaiser" }},
		{"unknown scaling", func(c *Config) { c.Spectrogram.Scaling = "power" }},
		{"overlap too large", func(c *Config) { c.Spectrogram.Overlap = 256 }},
		{"negative segment length", func(c *Config) { c.Spectrogram.SegmentLength = -1 }},
		{"empty output dir", func(c *Config) { c.Report.OutputDir = "" }},
		{"unknown trace context", func(c *Config) { c.Trace = TraceConfig{Context: "fft", Destination: "file:x"} }},
		{"trace without destination", func(c *Config) { c.Trace.Context = "playback" }},
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := valid()
			tc.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
