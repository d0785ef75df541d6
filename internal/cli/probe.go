package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgpai22/headcut/internal/media"
)

var probeCmd = &cobra.Command{
	Use:   "probe [media]",
	Short: "Print media metadata and the background fit",
	Long: `Probe a local file or URL and print its dimensions, duration and
asset type, together with the fit a background of that shape gets.

Examples:
  headcut probe background.mp4
  headcut probe https://cdn.example.com/bg.jpg --fit-tolerance 0.05`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

type probeOutput struct {
	media.Meta
	Aspect float64   `json:"aspect"`
	Fit    media.Fit `json:"fit"`
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().Float64("fit-tolerance", 0, "Aspect ratio tolerance for a cover fit")
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	src := args[0]
	tolerance, _ := cmd.Flags().GetFloat64("fit-tolerance")
	if tolerance <= 0 {
		tolerance = cfg.Pipeline.FitTolerance
	}

	path := src
	if media.IsRemote(src) {
		tempDir, err := os.MkdirTemp("", "headcut-probe-*")
		if err != nil {
			return fmt.Errorf("failed to create temp directory: %w", err)
		}
		defer os.RemoveAll(tempDir)

		path = filepath.Join(tempDir, "source"+filepath.Ext(src))
		client := &http.Client{Timeout: 10 * time.Minute}
		if err := media.Download(ctx, client, src, path); err != nil {
			return err
		}
	} else if _, err := os.Stat(src); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", src)
	}

	meta, err := media.NewFFprobe().Probe(ctx, path)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(probeOutput{
		Meta:   meta,
		Aspect: meta.AspectRatio(),
		Fit:    media.DecideFit(meta.Width, meta.Height, tolerance),
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
