package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ftl/tracescope/channel"
	"github.com/ftl/tracescope/control"
	"github.com/ftl/tracescope/loader"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "control the three channels interactively with commands on stdin",
	Long: `Control the three channels interactively. Type help for a list of the commands.
Channels are numbered 0 to 2.`,
	Run: runWithCtx(runConsole),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

const consoleHelp = `open <ch> [file]   load a file into the channel, the last selected file if omitted
play <ch>          start or resume the playback
pause <ch>         pause the playback
clear <ch>         clear the channel
zoomin <ch>        zoom into the view
zoomout <ch>       zoom out of the view
focus <ch>         fit the view to the revealed data
pan <ch> <dx> <dy> move the view
toggle <ch>        show or hide the channel
status             show the state of all channels
report             write a report of all channels
quit               leave the console
`

var errQuit = errors.New("quit")

func runConsole(ctx context.Context, env environment, cmd *cobra.Command, args []string) error {
	controller, err := newController(env)
	if err != nil {
		return err
	}
	browser := loader.NewStaticBrowser(env.cfg.Channels...)
	controller.SetBrowser(browser)
	controller.Start()
	defer controller.Stop()

	c := &console{controller: controller, browser: browser, out: os.Stdout}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(c.out, "> ")
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := c.Execute(line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				log.Debugf("command %q failed: %v", line, err)
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}
}

// console translates text commands into controller operations.
type console struct {
	controller *control.Controller
	browser    *loader.StaticBrowser
	out        io.Writer
}

func (c *console) Execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	command, args := strings.ToLower(fields[0]), fields[1:]

	switch command {
	case "help":
		fmt.Fprint(c.out, consoleHelp)
		return nil
	case "quit", "exit":
		return errQuit
	case "status":
		for _, snapshot := range c.controller.Snapshots() {
			fmt.Fprintln(c.out, snapshot)
		}
		return nil
	case "report":
		filename, err := c.controller.Report()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "report written to %s\n", filename)
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("%s: missing channel", command)
	}
	id, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	args = args[1:]

	switch command {
	case "open":
		if len(args) > 0 {
			if !loader.Accepted(args[0]) {
				return fmt.Errorf("%s is not a trace file (%s)", args[0], strings.Join(loader.Extensions, ", "))
			}
			c.browser.Select(id, args[0])
		}
		return c.controller.BrowseAndLoad(id)
	case "play":
		return c.controller.Play(id)
	case "pause":
		return c.controller.Pause(id)
	case "clear":
		return c.controller.Clear(id)
	case "zoomin":
		return c.controller.ZoomIn(id)
	case "zoomout":
		return c.controller.ZoomOut(id)
	case "focus":
		return c.controller.Focus(id)
	case "pan":
		if len(args) != 2 {
			return fmt.Errorf("pan: need <dx> <dy>")
		}
		dx, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("pan: invalid dx: %w", err)
		}
		dy, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("pan: invalid dy: %w", err)
		}
		return c.controller.Pan(id, dx, dy)
	case "toggle":
		visible, err := c.controller.ToggleVisibility(id)
		if err != nil {
			return err
		}
		if visible {
			fmt.Fprintf(c.out, "%s visible\n", id)
		} else {
			fmt.Fprintf(c.out, "%s hidden\n", id)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q, type help for a list of the commands", command)
	}
}

func parseChannel(s string) (channel.ID, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(s), "ch"))
	if err != nil {
		return 0, fmt.Errorf("invalid channel %q", s)
	}
	id := channel.ID(n)
	if !id.Valid() {
		return 0, fmt.Errorf("%w: %d", control.ErrInvalidChannel, n)
	}
	return id, nil
}
