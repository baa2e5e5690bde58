package cmd

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ftl/tracescope/config"
	"github.com/ftl/tracescope/control"
	"github.com/ftl/tracescope/export"
	"github.com/ftl/tracescope/loader"
	"github.com/ftl/tracescope/report"
	"github.com/ftl/tracescope/scope"
	"github.com/ftl/tracescope/spectrogram"
	"github.com/ftl/tracescope/trace"
)

var (
	version   string = "develop"
	gitCommit string = "-"
	buildTime string = "-"
)

var rootFlags = struct {
	configFile string
	pprof      bool
}{}

// flagKeys maps the persistent flags to their configuration keys.
var flagKeys = map[string]string{
	"debug":             "debug",
	"scope":             "scope.enabled",
	"scope-address":     "scope.grpc_address",
	"websocket-address": "scope.websocket_address",
	"output-dir":        "report.output_dir",
	"trace":             "trace.context",
	"trace-destination": "trace.destination",
}

var rootCmd = &cobra.Command{
	Use:   "tracescope",
	Short: "TraceScope - replay recorded signal traces like a live scope",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.configFile, "config", "", "config file (default is ./tracescope.yaml or $HOME/.config/tracescope/tracescope.yaml)")
	rootCmd.PersistentFlags().BoolVar(&rootFlags.pprof, "pprof", false, "enable pprof")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("scope", false, "enable the scope server for insights into the inner workings")
	rootCmd.PersistentFlags().String("scope-address", ":35369", "listening address for the gRPC scope server")
	rootCmd.PersistentFlags().String("websocket-address", ":35370", "listening address for the websocket scope server")
	rootCmd.PersistentFlags().String("output-dir", "reports", "the directory where the reports are written")
	rootCmd.PersistentFlags().String("trace", "", "trace the processing: playback or spectrogram")
	rootCmd.PersistentFlags().String("trace-destination", "", "the trace destination: file:<filename> or udp:<host:port>")

	rootCmd.PersistentFlags().MarkHidden("pprof")
	rootCmd.PersistentFlags().MarkHidden("trace")
	rootCmd.PersistentFlags().MarkHidden("trace-destination")
}

// bindFlags binds each known persistent flag to its configuration key.
func bindFlags(flags *pflag.FlagSet, v *viper.Viper) error {
	var lastErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			lastErr = err
		}
	})
	return lastErr
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v, err := config.New(rootFlags.configFile)
	if err != nil {
		return nil, err
	}
	if err := bindFlags(cmd.Flags(), v); err != nil {
		return nil, err
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debugf("using config file %s", used)
	}
	return config.Load(v)
}

// environment holds everything a command needs that is set up from the configuration.
type environment struct {
	cfg    *config.Config
	scope  scope.Scope
	tracer trace.Tracer
}

func runWithCtx(f func(ctx context.Context, env environment, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			log.Fatal(err)
		}

		if cfg.Debug {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.WarnLevel)
		}

		log.Debugf("TraceScope Version %s", formatVersion())

		if rootFlags.pprof {
			go func() {
				log.Info("starting pprof on http://localhost:6060/debug/pprof")
				log.Info(http.ListenAndServe("localhost:6060", nil))
			}()
		}

		env := environment{
			cfg:    cfg,
			scope:  scope.NewNullScope(),
			tracer: new(trace.NoTracer),
		}

		if cfg.Trace.Context != "" {
			env.tracer, err = trace.New(cfg.Trace.Context, cfg.Trace.Destination)
			if err != nil {
				log.Fatalf("cannot create the tracer: %v", err)
			}
		}

		var scopeServer *scope.ScopeServer
		if cfg.Scope.Enabled {
			scopeServer = scope.NewScopeServer(cfg.Scope.GRPCAddress, cfg.Scope.WebsocketAddress)
			err := scopeServer.Start()
			if err != nil {
				log.Fatalf("cannot start scope server: %v", err)
			}
			env.scope = scopeServer
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		go handleCancelation(signals, cancel)

		err = f(ctx, env, cmd, args)

		env.tracer.Stop()
		if scopeServer != nil {
			scopeServer.Stop()
		}
		if err != nil {
			log.Fatal(err)
		}
	}
}

// newController wires the controller with the collaborators described by the configuration.
func newController(env environment) (*control.Controller, error) {
	options, err := env.cfg.Spectrogram.Options()
	if err != nil {
		return nil, err
	}
	computer := spectrogram.NewComputer(options)
	computer.SetTracer(env.tracer)

	exporter := export.NewImageExporter(env.cfg.Report.Width, env.cfg.Report.Height)
	reports := report.NewBuilder(env.cfg.Report.OutputDir, exporter)

	result := control.New(loader.NewCSVLoader(), computer, reports)
	result.SetScope(env.scope)
	result.SetTracer(env.tracer)
	return result, nil
}

func formatVersion() string {
	if gitCommit == "-" && buildTime == "-" {
		return version
	}
	return fmt.Sprintf("%s_%s_%s", version, gitCommit, buildTime)
}

func handleCancelation(signals <-chan os.Signal, cancel context.CancelFunc) {
	count := 0
	for range signals {
		count++
		if count == 1 {
			cancel()
		} else {
			log.Fatal("hard shutdown")
		}
	}
}
