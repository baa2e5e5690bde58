package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ftl/tracescope/channel"
	"github.com/ftl/tracescope/control"
	"github.com/ftl/tracescope/loader"
)

var replayFlags = struct {
	report bool
	quiet  bool
}{}

var replayCmd = &cobra.Command{
	Use:   "replay [file...]",
	Short: "replay up to three recorded traces and optionally write a report",
	Long: `Replay up to three recorded traces at the live cadence of 20 samples every 150ms.
The files are assigned to the channels in the given order. Without arguments, the
channels from the configuration are used.`,
	Args: cobra.MaximumNArgs(channel.Count),
	Run:  runWithCtx(runReplay),
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().BoolVar(&replayFlags.report, "report", false, "write a report when all channels are completed")
	replayCmd.Flags().BoolVar(&replayFlags.quiet, "quiet", false, "do not print the progress")
}

func runReplay(ctx context.Context, env environment, cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		paths = env.cfg.Channels
	}
	if len(paths) == 0 {
		return fmt.Errorf("no trace files given")
	}

	controller, err := newController(env)
	if err != nil {
		return err
	}
	controller.SetBrowser(loader.NewStaticBrowser(paths...))

	var out io.Writer = os.Stdout
	if replayFlags.quiet {
		out = io.Discard
	}
	progress := newProgress(out)
	controller.SetIndicator(progress)

	controller.Start()
	defer controller.Stop()

	for i, path := range paths {
		if path == "" {
			continue
		}
		id := channel.ID(i)
		progress.Expect(id)
		// the channel is empty, so play loads the file through the browser first
		if err := controller.Play(id); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		return nil
	case <-progress.Done():
	}

	if !replayFlags.report {
		return nil
	}
	filename, err := controller.Report()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "report written to %s\n", filename)
	return nil
}

// progress prints the playback progress and signals when every expected channel is completed.
type progress struct {
	out       io.Writer
	lock      sync.Mutex
	expected  map[channel.ID]bool
	completed map[channel.ID]bool
	done      chan struct{}
	closeOnce sync.Once
}

func newProgress(out io.Writer) *progress {
	return &progress{
		out:       out,
		expected:  make(map[channel.ID]bool),
		completed: make(map[channel.ID]bool),
		done:      make(chan struct{}),
	}
}

func (p *progress) Expect(id channel.ID) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.expected[id] = true
}

func (p *progress) Done() <-chan struct{} {
	return p.done
}

func (p *progress) ChannelChanged(snapshot control.Snapshot) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.expected[snapshot.Channel] {
		return
	}
	if p.completed[snapshot.Channel] {
		return
	}
	if snapshot.Samples > 0 {
		fmt.Fprintf(p.out, "%s %s %d/%d\n", snapshot.Channel, snapshot.State, snapshot.Cursor, snapshot.Samples)
	}
	if !snapshot.Completed {
		return
	}
	p.completed[snapshot.Channel] = true

	for id := range p.expected {
		if !p.completed[id] {
			return
		}
	}
	p.closeOnce.Do(func() {
		close(p.done)
	})
}
