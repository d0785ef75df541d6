package overlay

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/headcut/internal/ffmpeg"
)

// splits a clip into numbered PNG frames starting at zero
func ExtractFrames(ctx context.Context, src, dir string) error {
	stream := ffmpeg.Input(src).
		Output(filepath.Join(dir, framePattern), ffmpeg.KwArgs{"start_number": 0}).
		OverWriteOutput().
		GlobalArgs("-hide_banner")
	if _, err := ffmpegbin.Run(ctx, stream); err != nil {
		return fmt.Errorf("frame extraction failed: %w", err)
	}
	return nil
}

// encoder arguments per container
func encodeArgs(c Container) ffmpeg.KwArgs {
	if c == ContainerWebM {
		return ffmpeg.KwArgs{
			"c:v":          "libvpx-vp9",
			"pix_fmt":      "yuva420p",
			"auto-alt-ref": 0,
			"c:a":          "libopus",
			"b:a":          "128k",
		}
	}
	return ffmpeg.KwArgs{
		"c:v":       "prores_ks",
		"profile:v": "4444",
		"pix_fmt":   "yuva444p10le",
		"c:a":       "aac",
		"b:a":       "192k",
		"movflags":  "+faststart",
	}
}

// muxes matted frames and the original audio track into an alpha video
func EncodeAlpha(ctx context.Context, framesDir, audioPath, out string, fps float64, c Container) error {
	if fps <= 0 {
		fps = 25
	}

	video := ffmpeg.Input(filepath.Join(framesDir, framePattern), ffmpeg.KwArgs{
		"framerate":    strconv.FormatFloat(fps, 'f', -1, 64),
		"start_number": 0,
	})
	streams := []*ffmpeg.Stream{video}
	if audioPath != "" {
		streams = append(streams, ffmpeg.Input(audioPath).Audio())
	}

	stream := ffmpeg.Output(streams, out, encodeArgs(c)).
		OverWriteOutput().
		GlobalArgs("-hide_banner")
	if _, err := ffmpegbin.Run(ctx, stream); err != nil {
		return fmt.Errorf("alpha encode failed: %w", err)
	}
	return nil
}
