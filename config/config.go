// Package config reads the tracescope configuration from file, environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ftl/tracescope/channel"
	"github.com/ftl/tracescope/dsp"
	"github.com/ftl/tracescope/spectrogram"
	"github.com/ftl/tracescope/trace"
)

const (
	Name      = "tracescope"
	EnvPrefix = "TRACESCOPE"
)

type Config struct {
	Debug       bool              `mapstructure:"debug"`
	Channels    []string          `mapstructure:"channels"`
	Spectrogram SpectrogramConfig `mapstructure:"spectrogram"`
	Report      ReportConfig      `mapstructure:"report"`
	Scope       ScopeConfig       `mapstructure:"scope"`
	Trace       TraceConfig       `mapstructure:"trace"`
}

type SpectrogramConfig struct {
	SegmentLength int    `mapstructure:"segment_length"`
	Overlap       int    `mapstructure:"overlap"`
	Window        string `mapstructure:"window"`
	Scaling       string `mapstructure:"scaling"`
}

type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
}

type ScopeConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	GRPCAddress      string `mapstructure:"grpc_address"`
	WebsocketAddress string `mapstructure:"websocket_address"`
}

type TraceConfig struct {
	Context     string `mapstructure:"context"`
	Destination string `mapstructure:"destination"`
}

// New returns a viper instance with the defaults, the environment binding and the
// config file, if one is found. An explicitly given config file must exist.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", Name))
		}
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !(configFile == "" && errors.As(err, &notFound)) {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}
	return v, nil
}

// SetDefaults sets the default values of every key.
func SetDefaults(v *viper.Viper) {
	defaults := spectrogram.DefaultOptions()

	v.SetDefault("debug", false)
	v.SetDefault("channels", []string{})

	v.SetDefault("spectrogram.segment_length", defaults.SegmentLength)
	v.SetDefault("spectrogram.overlap", defaults.Overlap)
	v.SetDefault("spectrogram.window", string(defaults.Window))
	v.SetDefault("spectrogram.scaling", string(defaults.Scaling))

	v.SetDefault("report.output_dir", "reports")
	v.SetDefault("report.width", 800)
	v.SetDefault("report.height", 300)

	v.SetDefault("scope.enabled", false)
	v.SetDefault("scope.grpc_address", ":35369")
	v.SetDefault("scope.websocket_address", ":35370")

	v.SetDefault("trace.context", "")
	v.SetDefault("trace.destination", "")
}

// Load decodes and validates the configuration.
func Load(v *viper.Viper) (*Config, error) {
	result := &Config{}
	if err := v.Unmarshal(result); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Config) Validate() error {
	if len(c.Channels) > channel.Count {
		return fmt.Errorf("at most %d channels can be configured, got %d", channel.Count, len(c.Channels))
	}
	if _, err := c.Spectrogram.Options(); err != nil {
		return err
	}
	if c.Report.OutputDir == "" {
		return fmt.Errorf("the report output directory must not be empty")
	}
	if c.Report.Width < 0 || c.Report.Height < 0 {
		return fmt.Errorf("the report image size must not be negative")
	}
	switch c.Trace.Context {
	case "", trace.Playback, trace.Spectrogram:
	default:
		return fmt.Errorf("unknown trace context %q", c.Trace.Context)
	}
	if c.Trace.Context != "" && c.Trace.Destination == "" {
		return fmt.Errorf("trace context %s requires a trace destination", c.Trace.Context)
	}
	return nil
}

// Options converts the configuration into spectrogram options.
func (c SpectrogramConfig) Options() (spectrogram.Options, error) {
	window, err := dsp.ParseWindowType(c.Window)
	if err != nil {
		return spectrogram.Options{}, err
	}

	var scaling spectrogram.Scaling
	switch spectrogram.Scaling(strings.ToLower(c.Scaling)) {
	case "", spectrogram.DensityScaling:
		scaling = spectrogram.DensityScaling
	case spectrogram.MagnitudeScaling:
		scaling = spectrogram.MagnitudeScaling
	default:
		return spectrogram.Options{}, fmt.Errorf("unknown spectrogram scaling %q", c.Scaling)
	}

	if c.SegmentLength < 0 {
		return spectrogram.Options{}, fmt.Errorf("the segment length must not be negative")
	}
	if c.SegmentLength > 0 && c.Overlap >= c.SegmentLength {
		return spectrogram.Options{}, fmt.Errorf("the overlap must be less than the segment length")
	}

	return spectrogram.Options{
		SegmentLength: c.SegmentLength,
		Overlap:       c.Overlap,
		Window:        window,
		Scaling:       scaling,
	}, nil
}
