package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/headcut/internal/audio"
	"github.com/mgpai22/headcut/internal/media"
	"github.com/mgpai22/headcut/internal/subtitle"
)

var segmentCmd = &cobra.Command{
	Use:   "segment [media_file]",
	Short: "Detect speech intervals and time a transcript against them",
	Long: `Detect the speech intervals of a local audio or video file with
ffmpeg's silencedetect filter.

Without a transcript the intervals are printed as JSON. With --transcript
or --transcript-file the sentences are spread over the intervals and the
resulting cues are written to the output path (json, srt or vtt).

Examples:
  headcut segment head.mp4
  headcut segment head.mp4 --transcript-file script.txt -o cues.json
  headcut segment head.mp4 --noise -40 --min-silence 0.5`,
	Args: cobra.ExactArgs(1),
	RunE: runSegment,
}

func init() {
	rootCmd.AddCommand(segmentCmd)

	defaults := audio.DefaultSilenceOptions()
	segmentCmd.Flags().String("transcript", "", "Transcript text to align")
	segmentCmd.Flags().String("transcript-file", "", "File holding the transcript to align")
	segmentCmd.Flags().Float64("noise", defaults.NoiseDB, "Silence threshold in dB")
	segmentCmd.Flags().
		Float64("min-silence", defaults.MinSilenceDuration, "Seconds of quiet that split speech")
	segmentCmd.Flags().
		Float64("min-segment", defaults.MinSegmentDuration, "Shortest speech interval kept")
}

func runSegment(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	mediaPath := args[0]

	transcript, _ := cmd.Flags().GetString("transcript")
	transcriptFile, _ := cmd.Flags().GetString("transcript-file")
	outputPath, _ := cmd.Flags().GetString("output")

	opts := audio.DefaultSilenceOptions()
	opts.NoiseDB, _ = cmd.Flags().GetFloat64("noise")
	opts.MinSilenceDuration, _ = cmd.Flags().GetFloat64("min-silence")
	opts.MinSegmentDuration, _ = cmd.Flags().GetFloat64("min-segment")

	if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", mediaPath)
	}

	total, err := media.NewFFprobe().Duration(ctx, mediaPath)
	if err != nil {
		return err
	}

	logger.Infow("Detecting speech", "input", mediaPath, "duration", total)
	intervals, err := audio.DetectSpeechSegments(ctx, mediaPath, total, opts)
	if err != nil {
		return err
	}
	logger.Infow("Speech detected",
		"intervals", len(intervals),
		"speech", audio.TotalDuration(intervals),
	)

	text, err := subtitle.ReadTranscript(transcript, transcriptFile)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		out, err := json.MarshalIndent(intervals, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	cues := subtitle.AlignTranscript(text, intervals, total)
	if outputPath == "" {
		outputPath = strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + ".json"
	}
	if err := subtitle.Write(outputPath, cues); err != nil {
		return fmt.Errorf("failed to write cues: %w", err)
	}
	fmt.Printf("Cues written: %s\n", outputPath)
	fmt.Printf("  Intervals: %d\n", len(intervals))
	fmt.Printf("  Cues: %d\n", len(cues))
	return nil
}
