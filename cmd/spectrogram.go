package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ftl/tracescope/export"
)

var spectrogramFlags = struct {
	png string
}{}

var spectrogramCmd = &cobra.Command{
	Use:   "spectrogram <file>",
	Short: "compute the spectrogram of a recorded trace",
	Args:  cobra.ExactArgs(1),
	Run:   runWithCtx(runSpectrogram),
}

func init() {
	rootCmd.AddCommand(spectrogramCmd)

	spectrogramCmd.Flags().StringVar(&spectrogramFlags.png, "png", "", "render the spectrogram into the given PNG file")
}

func runSpectrogram(ctx context.Context, env environment, cmd *cobra.Command, args []string) error {
	controller, err := newController(env)
	if err != nil {
		return err
	}

	if err := controller.LoadFile(0, args[0]); err != nil {
		return err
	}
	result, err := controller.Spectrogram(0)
	if err != nil {
		return err
	}

	levels := result.Levels()
	extent := result.Extent()
	fmt.Printf("sampling rate: %g Hz\n", result.SampleRate)
	fmt.Printf("frequency bins: %d (%g Hz - %g Hz)\n", len(result.Frequencies), extent.Y.Min, extent.Y.Max)
	fmt.Printf("time bins: %d (%g s - %g s)\n", len(result.Times), extent.X.Min, extent.X.Max)
	fmt.Printf("levels: %g - %g\n", levels.Min, levels.Max)

	if spectrogramFlags.png == "" {
		return nil
	}

	file, err := os.Create(spectrogramFlags.png)
	if err != nil {
		return err
	}
	defer file.Close()

	size := export.NewImageExporter(env.cfg.Report.Width, env.cfg.Report.Height)
	artifact := &export.SpectrogramArtifact{Result: result, View: extent}
	err = export.RenderSpectrogram(file, artifact, size.Width, size.Height)
	if err != nil {
		return err
	}
	fmt.Printf("spectrogram written to %s\n", spectrogramFlags.png)
	return nil
}
